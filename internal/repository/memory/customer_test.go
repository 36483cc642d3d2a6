package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/telcoassist-server/internal/model"
)

func TestCustomerStore(t *testing.T) {
	ctx := context.Background()
	s := NewCustomerStore(model.Customer{PhoneNumber: "+60123456789", CustomerID: "CUST-1"})

	_, err := s.GetByPhone(ctx, "+60000000000")
	assert.ErrorIs(t, err, model.ErrNotFound)

	until := time.Now().Add(15 * time.Minute)
	require.NoError(t, s.SetLockedUntil(ctx, "+60123456789", until))
	c, err := s.GetByPhone(ctx, "+60123456789")
	require.NoError(t, err)
	require.NotNil(t, c.PinLockedUntil)
	assert.True(t, until.Equal(*c.PinLockedUntil))

	require.NoError(t, s.ClearLock(ctx, "+60123456789"))
	c, err = s.GetByPhone(ctx, "+60123456789")
	require.NoError(t, err)
	assert.Nil(t, c.PinLockedUntil)

	require.NoError(t, s.SetFeature(ctx, "+60123456789", true))
	active, err := s.GetFeature(ctx, "+60123456789")
	require.NoError(t, err)
	assert.True(t, active)
	assert.Equal(t, 1, s.SetFeatureCalls())

	assert.ErrorIs(t, s.SetFeature(ctx, "+60000000000", true), model.ErrNotFound)
	_, err = s.GetFeature(ctx, "+60000000000")
	assert.ErrorIs(t, err, model.ErrNotFound)
}
