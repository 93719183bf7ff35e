package leave

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/repository/memory"
	apperrors "github.com/jwalitptl/booking-api/pkg/errors"
)

func TestLeaveService(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	clinician := store.AddClinician(model.Clinician{Name: "Dr. Nakamura"})
	svc := NewService(store.Leaves(), store.Clinicians(), nil)
	today := time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return today.Add(8 * time.Hour) }

	leave, err := svc.Create(ctx, clinician.ID, today.AddDate(0, 0, 3).Add(14*time.Hour), " conference ")
	require.NoError(t, err)
	assert.Equal(t, today.AddDate(0, 0, 3), leave.Date)
	assert.Equal(t, "conference", leave.Reason)
	assert.True(t, leave.Active)

	_, err = svc.Create(ctx, clinician.ID, today.AddDate(2, 0, 0), "")
	require.NoError(t, err)

	onLeave, err := svc.IsOnLeave(ctx, clinician.ID, today.AddDate(0, 0, 3))
	require.NoError(t, err)
	assert.True(t, onLeave)
	onLeave, err = svc.IsOnLeave(ctx, clinician.ID, today.AddDate(0, 0, 4))
	require.NoError(t, err)
	assert.False(t, onLeave)

	list, err := svc.List(ctx, clinician.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, leave.ID, list[0].ID)

	require.NoError(t, svc.Delete(ctx, leave.ID))
	assert.True(t, apperrors.IsNotFound(svc.Delete(ctx, leave.ID)))

	_, err = svc.Create(ctx, uuid.New(), today, "")
	assert.True(t, apperrors.IsNotFound(err))
	_, err = svc.Create(ctx, clinician.ID, time.Time{}, "")
	assert.True(t, apperrors.IsValidation(err))
}
