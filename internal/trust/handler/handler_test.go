package handler

import (
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

	accessstore "truconn/internal/access/store"
	"truconn/internal/compliance/engine"
	compstore "truconn/internal/compliance/store"
	consentstore "truconn/internal/consent/store"
	orgmodels "truconn/internal/organization/models"
	orgstore "truconn/internal/organization/store"
	"truconn/internal/platform/middleware"
	"truconn/internal/trust/service"
)

type HandlerSuite struct {
	suite.Suite

	directory *orgstore.InMemoryStore
	router    *chi.Mux
	org       *orgmodels.Organization
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	logger := slog.New(slog.DiscardHandler)
	s.directory = orgstore.New()

	org, err := orgmodels.New(uuid.NewString(), "Acme Analytics", "acme@example.com")
	s.Require().NoError(err)
	s.Require().NoError(s.directory.Save(context.Background(), org))
	s.org = org

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	access := accessstore.New()
	consents := consentstore.New()
	violations := compstore.New()
	scanner := engine.New(engine.DefaultCatalog(), access, consents, engine.WithClock(clock))
	svc := service.New(s.directory, scanner, violations, access, consents,
		service.WithLogger(logger), service.WithClock(clock))

	h := New(svc, s.directory, logger)
	s.router = chi.NewRouter()
	h.RegisterPublicRoutes(s.router)
	h.RegisterOrganizationRoutes(s.router)
}

func (s *HandlerSuite) do(target, userID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if userID != "" {
		req = req.WithContext(middleware.WithPrincipal(req.Context(),
			middleware.Principal{UserID: userID, Role: middleware.RoleOrganization}))
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *HandlerSuite) TestPublicScoreByID() {
	rec := s.do("/trust/score/"+s.org.ID.String(), "")
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	var body map[string]any
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	s.Equal(s.org.ID.String(), body["organization_id"])
	s.Equal("EXCELLENT", body["trust_level"])
	s.InDelta(99.25, body["overall_score"].(float64), 0.001)
	s.Equal(true, body["certificate_issued"])
}

func (s *HandlerSuite) TestPublicScoreBadID() {
	rec := s.do("/trust/score/not-a-uuid", "")
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *HandlerSuite) TestPublicScoreUnknownOrg() {
	rec := s.do("/trust/score/"+uuid.NewString(), "")
	s.Equal(http.StatusNotFound, rec.Code)
}

func (s *HandlerSuite) TestOwnScore() {
	rec := s.do("/trust/score", s.org.OwnerUserID)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	var body map[string]any
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	s.Equal(s.org.ID.String(), body["organization_id"])
}

func (s *HandlerSuite) TestOwnScoreWithoutOrganization() {
	rec := s.do("/trust/score", uuid.NewString())
	s.Equal(http.StatusForbidden, rec.Code)
}

func (s *HandlerSuite) TestRegistry() {
	rec := s.do("/trust/registry?limit=10", "")
	s.Require().Equal(http.StatusOK, rec.Code)

	var body struct {
		Organizations []map[string]any `json:"organizations"`
	}
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	s.Require().Len(body.Organizations, 1)
	s.Equal("Acme Analytics", body.Organizations[0]["name"])
}

func (s *HandlerSuite) TestRegistryRejectsBadLimit() {
	rec := s.do("/trust/registry?limit=ten", "")
	s.Equal(http.StatusBadRequest, rec.Code)
}
