package integrity

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"truconn/internal/access/models"
	"truconn/internal/access/store"
)

func sampleRequest(orgID uuid.UUID) *models.Request {
	purpose := "quarterly billing verification"
	return &models.Request{
		ID:             uuid.New(),
		OrganizationID: orgID,
		UserID:         "usr-1",
		ConsentTypeID:  uuid.New(),
		Status:         models.StatusApproved,
		Purpose:        &purpose,
		RequestedAt:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestChecksumDeterministic(t *testing.T) {
	req := sampleRequest(uuid.New())

	first, err := Checksum(req)
	require.NoError(t, err)
	second, err := Checksum(req)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Len(t, first, 64)
}

func TestChecksumChangesWithContent(t *testing.T) {
	req := sampleRequest(uuid.New())
	original, err := Checksum(req)
	require.NoError(t, err)

	req.Status = models.StatusRevoked
	mutated, err := Checksum(req)
	require.NoError(t, err)
	assert.NotEqual(t, original, mutated)
}

func TestVerifyOrganization(t *testing.T) {
	ctx := context.Background()
	log := store.New()
	orgID := uuid.New()

	first := sampleRequest(orgID)
	require.NoError(t, log.Create(ctx, first))
	second := sampleRequest(orgID)
	second.UserID = "usr-2"
	require.NoError(t, log.Create(ctx, second))
	require.NoError(t, log.Create(ctx, sampleRequest(uuid.New()))) // other org

	checker := NewChecker(log)
	summary, err := checker.VerifyOrganization(ctx, orgID)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.TotalRecords)
	assert.Equal(t, 2, summary.VerifiedCount)
	assert.Len(t, summary.Checksums, 2)
	assert.Contains(t, summary.Checksums, first.ID)
}
