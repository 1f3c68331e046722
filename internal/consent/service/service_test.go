package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"truconn/internal/consent/models"
	"truconn/internal/consent/store"
	"truconn/internal/notify"
	dErrors "truconn/pkg/domain-errors"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []notify.Event
}

func (n *recordingNotifier) Emit(_ context.Context, event notify.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

type ServiceSuite struct {
	suite.Suite
	store    *store.InMemoryStore
	notifier *recordingNotifier
	service  *Service
	ctx      context.Context
	now      time.Time
	typeID   uuid.UUID
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.store = store.New()
	s.notifier = &recordingNotifier{}
	s.ctx = context.Background()
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.service = New(s.store,
		WithNotifier(s.notifier),
		WithClock(func() time.Time { return s.now }),
	)

	s.typeID = uuid.New()
	s.Require().NoError(s.store.SaveType(s.ctx, &models.ConsentType{
		ID: s.typeID, Name: "location", CreatedAt: s.now,
	}))
}

func (s *ServiceSuite) TestToggleCreatesGrantOnFirstUse() {
	status, err := s.service.ToggleConsent(s.ctx, "usr-1", s.typeID, nil)
	s.Require().NoError(err)
	s.True(status.Grant.Access)
	s.Equal("location", status.ConsentType.Name)
	s.Require().NotNil(status.Grant.GrantedAt)
	s.Equal(s.now, *status.Grant.GrantedAt)
	s.Nil(status.Grant.ExpiresAt)

	s.Require().Len(s.notifier.events, 1)
	s.Equal(notify.EventConsentGranted, s.notifier.events[0].Type)
}

func (s *ServiceSuite) TestToggleFlipsBack() {
	_, err := s.service.ToggleConsent(s.ctx, "usr-1", s.typeID, nil)
	s.Require().NoError(err)

	s.now = s.now.Add(time.Hour)
	status, err := s.service.ToggleConsent(s.ctx, "usr-1", s.typeID, nil)
	s.Require().NoError(err)
	s.False(status.Grant.Access)
	s.Require().NotNil(status.Grant.RevokedAt)

	history, err := s.service.History(s.ctx, "usr-1", nil)
	s.Require().NoError(err)
	s.Require().Len(history, 2)
	s.Equal(models.ActionRevoked, history[0].Action)
}

func (s *ServiceSuite) TestFirstToggleRecordsCreationReason() {
	_, err := s.service.ToggleConsent(s.ctx, "usr-1", s.typeID, nil)
	s.Require().NoError(err)

	s.now = s.now.Add(time.Hour)
	_, err = s.service.ToggleConsent(s.ctx, "usr-1", s.typeID, nil)
	s.Require().NoError(err)

	history, err := s.service.History(s.ctx, "usr-1", nil)
	s.Require().NoError(err)
	s.Require().Len(history, 2)
	s.Equal(models.ReasonUserToggle, history[0].Reason)
	s.Equal(models.ReasonInitialCreation, history[1].Reason)
}

func (s *ServiceSuite) TestToggleWithDurationSetsExpiry() {
	days := 30
	status, err := s.service.ToggleConsent(s.ctx, "usr-1", s.typeID, &days)
	s.Require().NoError(err)
	s.Require().NotNil(status.Grant.ExpiresAt)
	s.Equal(s.now.Add(30*24*time.Hour), *status.Grant.ExpiresAt)
}

func (s *ServiceSuite) TestToggleRejectsNonPositiveDuration() {
	days := 0
	_, err := s.service.ToggleConsent(s.ctx, "usr-1", s.typeID, &days)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func (s *ServiceSuite) TestToggleUnknownTypeNotFound() {
	_, err := s.service.ToggleConsent(s.ctx, "usr-1", uuid.New(), nil)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestCheckExpiryRevokesOverdueGrants() {
	days := 10
	_, err := s.service.ToggleConsent(s.ctx, "usr-1", s.typeID, &days)
	s.Require().NoError(err)

	s.now = s.now.Add(11 * 24 * time.Hour)
	report, err := s.service.CheckExpiry(s.ctx, "usr-1")
	s.Require().NoError(err)
	s.Require().Len(report.Expired, 1)
	s.Empty(report.ExpiringSoon)
	s.False(report.Expired[0].Grant.Access)

	history, err := s.service.History(s.ctx, "usr-1", nil)
	s.Require().NoError(err)
	s.Equal(models.ActionExpired, history[0].Action)

	last := s.notifier.events[len(s.notifier.events)-1]
	s.Equal(notify.EventConsentExpired, last.Type)
}

func (s *ServiceSuite) TestCheckExpiryReportsExpiringSoonWithoutRevoking() {
	days := 10
	_, err := s.service.ToggleConsent(s.ctx, "usr-1", s.typeID, &days)
	s.Require().NoError(err)

	s.now = s.now.Add(5 * 24 * time.Hour)
	report, err := s.service.CheckExpiry(s.ctx, "usr-1")
	s.Require().NoError(err)
	s.Empty(report.Expired)
	s.Require().Len(report.ExpiringSoon, 1)
	s.Equal(5, report.ExpiringSoon[0].DaysRemaining)
	s.True(report.ExpiringSoon[0].Status.Grant.Access)
}

func (s *ServiceSuite) TestListStatusJoinsTypes() {
	_, err := s.service.ToggleConsent(s.ctx, "usr-1", s.typeID, nil)
	s.Require().NoError(err)

	statuses, err := s.service.ListStatus(s.ctx, "usr-1")
	s.Require().NoError(err)
	s.Require().Len(statuses, 1)
	s.Equal("location", statuses[0].ConsentType.Name)
}

func (s *ServiceSuite) TestHistoryFilteredByType() {
	otherType := uuid.New()
	s.Require().NoError(s.store.SaveType(s.ctx, &models.ConsentType{
		ID: otherType, Name: "health", CreatedAt: s.now,
	}))
	_, err := s.service.ToggleConsent(s.ctx, "usr-1", s.typeID, nil)
	s.Require().NoError(err)
	_, err = s.service.ToggleConsent(s.ctx, "usr-1", otherType, nil)
	s.Require().NoError(err)

	entries, err := s.service.History(s.ctx, "usr-1", &s.typeID)
	s.Require().NoError(err)
	s.Len(entries, 1)
}
