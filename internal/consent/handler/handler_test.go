package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"truconn/internal/consent/models"
	"truconn/internal/consent/service"
	"truconn/internal/consent/store"
	"truconn/internal/platform/middleware"
)

type HandlerSuite struct {
	suite.Suite
	router chi.Router
	store  *store.InMemoryStore
	typeID uuid.UUID
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.store = store.New()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.typeID = uuid.New()
	s.Require().NoError(s.store.SaveType(context.Background(), &models.ConsentType{
		ID: s.typeID, Name: "location", CreatedAt: now,
	}))

	logger := slog.New(slog.DiscardHandler)
	svc := service.New(s.store, service.WithLogger(logger))
	h := New(svc, logger)

	s.router = chi.NewRouter()
	h.RegisterRoutes(s.router)
}

func (s *HandlerSuite) do(method, target string, body any, userID string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req = req.WithContext(middleware.WithPrincipal(req.Context(), middleware.Principal{
		UserID: userID,
		Role:   middleware.RoleCitizen,
	}))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *HandlerSuite) TestToggleGrantsConsent() {
	rec := s.do(http.MethodPost, "/consents/"+s.typeID.String()+"/toggle", nil, "usr-1")
	s.Require().Equal(http.StatusOK, rec.Code)

	var resp struct {
		ConsentType string `json:"consent_type"`
		Access      bool   `json:"access"`
	}
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	s.Equal("location", resp.ConsentType)
	s.True(resp.Access)
}

func (s *HandlerSuite) TestToggleRejectsMalformedTypeID() {
	rec := s.do(http.MethodPost, "/consents/not-a-uuid/toggle", nil, "usr-1")
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *HandlerSuite) TestToggleUnknownTypeReturns404() {
	rec := s.do(http.MethodPost, "/consents/"+uuid.NewString()+"/toggle", nil, "usr-1")
	s.Equal(http.StatusNotFound, rec.Code)
}

func (s *HandlerSuite) TestStatusScopedToCaller() {
	rec := s.do(http.MethodPost, "/consents/"+s.typeID.String()+"/toggle", nil, "usr-1")
	s.Require().Equal(http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, "/consents", nil, "usr-2")
	s.Require().Equal(http.StatusOK, rec.Code)
	var resp struct {
		Consents []json.RawMessage `json:"consents"`
	}
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	s.Empty(resp.Consents)
}

func (s *HandlerSuite) TestHistoryReturnsTrail() {
	for range 2 {
		rec := s.do(http.MethodPost, "/consents/"+s.typeID.String()+"/toggle", nil, "usr-1")
		s.Require().Equal(http.StatusOK, rec.Code)
	}

	rec := s.do(http.MethodGet, "/consents/history", nil, "usr-1")
	s.Require().Equal(http.StatusOK, rec.Code)
	var resp struct {
		History []struct {
			Action string `json:"action"`
		} `json:"history"`
	}
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	s.Require().Len(resp.History, 2)
	s.Equal("REVOKED", resp.History[0].Action)
	s.Equal("GRANTED", resp.History[1].Action)
}

func (s *HandlerSuite) TestCheckExpiryEmptyReport() {
	rec := s.do(http.MethodGet, "/consents/expiry", nil, "usr-1")
	s.Require().Equal(http.StatusOK, rec.Code)
	var resp struct {
		Expired      []json.RawMessage `json:"expired"`
		ExpiringSoon []json.RawMessage `json:"expiring_soon"`
	}
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	s.Empty(resp.Expired)
	s.Empty(resp.ExpiringSoon)
}
