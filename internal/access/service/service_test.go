package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"truconn/internal/access/models"
	"truconn/internal/access/store"
	dErrors "truconn/pkg/domain-errors"
)

type ServiceSuite struct {
	suite.Suite
	store   *store.InMemoryStore
	service *Service
	ctx     context.Context
	now     time.Time
	orgID   uuid.UUID
	typeID  uuid.UUID
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.store = store.New()
	s.ctx = context.Background()
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.orgID = uuid.New()
	s.typeID = uuid.New()
	s.service = New(s.store, WithClock(func() time.Time { return s.now }))
}

func (s *ServiceSuite) TestCreateRequest() {
	req, err := s.service.CreateRequest(s.ctx, s.orgID, "usr-1", s.typeID, "fraud screening")
	s.Require().NoError(err)
	s.Equal(models.StatusPending, req.Status)
	s.Require().NotNil(req.Purpose)
	s.Equal("fraud screening", *req.Purpose)
	s.Equal(s.now, req.RequestedAt)
}

func (s *ServiceSuite) TestCreateRequestRequiresPurpose() {
	_, err := s.service.CreateRequest(s.ctx, s.orgID, "usr-1", s.typeID, "   ")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func (s *ServiceSuite) TestCreateRequestDuplicateTripleConflicts() {
	_, err := s.service.CreateRequest(s.ctx, s.orgID, "usr-1", s.typeID, "fraud screening")
	s.Require().NoError(err)

	_, err = s.service.CreateRequest(s.ctx, s.orgID, "usr-1", s.typeID, "another purpose")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *ServiceSuite) TestDecideApprove() {
	req, err := s.service.CreateRequest(s.ctx, s.orgID, "usr-1", s.typeID, "fraud screening")
	s.Require().NoError(err)

	s.now = s.now.Add(time.Hour)
	decided, err := s.service.Decide(s.ctx, req.ID, "usr-1", true)
	s.Require().NoError(err)
	s.Equal(models.StatusApproved, decided.Status)
	s.Require().NotNil(decided.DecidedAt)
	s.Equal(s.now, *decided.DecidedAt)
}

func (s *ServiceSuite) TestDecideRevoke() {
	req, err := s.service.CreateRequest(s.ctx, s.orgID, "usr-1", s.typeID, "fraud screening")
	s.Require().NoError(err)

	decided, err := s.service.Decide(s.ctx, req.ID, "usr-1", false)
	s.Require().NoError(err)
	s.Equal(models.StatusRevoked, decided.Status)
}

func (s *ServiceSuite) TestDecideByWrongUserForbidden() {
	req, err := s.service.CreateRequest(s.ctx, s.orgID, "usr-1", s.typeID, "fraud screening")
	s.Require().NoError(err)

	_, err = s.service.Decide(s.ctx, req.ID, "usr-2", true)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
}

func (s *ServiceSuite) TestDecideUnknownRequestNotFound() {
	_, err := s.service.Decide(s.ctx, uuid.New(), "usr-1", true)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestTransparencyLogScopedToUser() {
	_, err := s.service.CreateRequest(s.ctx, s.orgID, "usr-1", s.typeID, "fraud screening")
	s.Require().NoError(err)
	_, err = s.service.CreateRequest(s.ctx, s.orgID, "usr-2", s.typeID, "fraud screening")
	s.Require().NoError(err)

	log, err := s.service.TransparencyLog(s.ctx, "usr-1")
	s.Require().NoError(err)
	s.Require().Len(log, 1)
	s.Equal("usr-1", log[0].UserID)
}
