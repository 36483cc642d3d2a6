package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	servermocks "github.com/dtroode/telcoassist-server/internal/mocks"
	"github.com/dtroode/telcoassist-server/internal/model"
	"github.com/dtroode/telcoassist-server/internal/repository/memory"
	"github.com/dtroode/telcoassist-server/internal/testutil"
)

const (
	testPhone      = "+60123456789"
	testPIN        = "1234"
	testSalt       = "a1b2c3d4e5f60718293a4b5c6d7e8f90"
	testIterations = 1000
)

var testNow = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

func testCustomer(t *testing.T) model.Customer {
	t.Helper()
	hash, err := HashPIN(testPIN, testSalt, testIterations)
	require.NoError(t, err)
	return model.Customer{
		PhoneNumber:   testPhone,
		CustomerID:    "CUST-60123456789",
		Name:          "Aisyah",
		PinHash:       hash,
		Salt:          testSalt,
		PinIterations: testIterations,
	}
}

func testPolicy() GuardPolicy {
	return GuardPolicy{MaxAttempts: 3, Lockout: 15 * time.Minute, Iterations: testIterations}
}

type guardFixture struct {
	guard     *Guard
	sessions  *memory.SessionStore
	customers *memory.CustomerStore
	hashCalls *int
	clock     *time.Time
}

func newGuardFixture(t *testing.T, customers ...model.Customer) guardFixture {
	t.Helper()
	clock := testNow
	sessions := memory.NewSessionStore().WithClock(func() time.Time { return clock })
	require.NoError(t, sessions.PutNewTurn(context.Background(), model.Turn{
		SessionID: "S1",
		State:     model.SessionActive,
		ExpiresAt: testNow.Add(model.DefaultSessionTTL),
	}))
	store := memory.NewCustomerStore(customers...)

	g := NewGuard(sessions, store, testPolicy(), testutil.MakeNoopLogger()).
		WithClock(func() time.Time { return clock })

	calls := 0
	g.hashPIN = func(pin string, salt []byte, iterations int) []byte {
		calls++
		return pbkdf2SHA256(pin, salt, iterations)
	}

	return guardFixture{guard: g, sessions: sessions, customers: store, hashCalls: &calls, clock: &clock}
}

func (f guardFixture) attempts(t *testing.T) int {
	t.Helper()
	turn, err := f.sessions.GetLatest(context.Background(), "S1")
	require.NoError(t, err)
	return turn.PinAttempts
}

func TestGuard_Verify(t *testing.T) {
	ctx := context.Background()
	customer := testCustomer(t)

	noHash := customer
	noHash.PhoneNumber = "+60111111111"
	noHash.PinHash = ""

	badSalt := customer
	badSalt.PhoneNumber = "+60122222222"
	badSalt.Salt = "not-hex"

	tests := []struct {
		name     string
		phone    string
		pin      string
		expected Verification
	}{
		{name: "correct pin", phone: testPhone, pin: testPIN, expected: Verification{Verified: true}},
		{name: "wrong pin", phone: testPhone, pin: "9999", expected: Verification{Reason: ReasonIncorrectPIN}},
		{name: "unknown customer", phone: "+60199999999", pin: testPIN, expected: Verification{Reason: ReasonCustomerNotFound}},
		{name: "missing hash", phone: noHash.PhoneNumber, pin: testPIN, expected: Verification{Reason: ReasonInvalidData}},
		{name: "malformed salt", phone: badSalt.PhoneNumber, pin: testPIN, expected: Verification{Reason: ReasonInvalidData}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newGuardFixture(t, customer, noHash, badSalt)
			assert.Equal(t, tt.expected, f.guard.Verify(ctx, tt.phone, tt.pin))
		})
	}
}

func TestGuard_VerifyLockedSkipsComparison(t *testing.T) {
	ctx := context.Background()
	customer := testCustomer(t)
	lockedUntil := testNow.Add(10*time.Minute + 30*time.Second)
	customer.PinLockedUntil = &lockedUntil

	f := newGuardFixture(t, customer)

	v := f.guard.Verify(ctx, testPhone, testPIN)
	assert.True(t, v.Locked)
	assert.False(t, v.Verified)
	assert.Equal(t, "Account locked due to failed PIN attempts. Try again in 11 minutes.", v.Reason)
	assert.Equal(t, 0, *f.hashCalls)
}

func TestGuard_VerifyClearsElapsedLock(t *testing.T) {
	ctx := context.Background()
	customer := testCustomer(t)
	lockedUntil := testNow.Add(-time.Second)
	customer.PinLockedUntil = &lockedUntil

	f := newGuardFixture(t, customer)

	v := f.guard.Verify(ctx, testPhone, testPIN)
	assert.True(t, v.Verified)
	assert.Equal(t, 1, *f.hashCalls)

	stored, err := f.customers.GetByPhone(ctx, testPhone)
	require.NoError(t, err)
	assert.Nil(t, stored.PinLockedUntil)
}

func TestGuard_VerifyStoreError(t *testing.T) {
	customers := servermocks.NewCustomerStore(t)
	customers.On("GetByPhone", mock.Anything, testPhone).Return(model.Customer{}, errors.New("timeout"))

	g := NewGuard(memory.NewSessionStore(), customers, testPolicy(), testutil.MakeNoopLogger())
	v := g.Verify(context.Background(), testPhone, testPIN)

	assert.False(t, v.Verified)
	assert.False(t, v.Locked)
	require.Error(t, v.Err)
	assert.Contains(t, v.Err.Error(), "timeout")
	assert.Empty(t, v.Reason)
}

func TestGuard_AuthorizeStoreErrorCountsNoAttempt(t *testing.T) {
	ctx := context.Background()
	customers := servermocks.NewCustomerStore(t)
	customers.On("GetByPhone", mock.Anything, testPhone).Return(model.Customer{}, errors.New("connection reset"))

	store := memory.NewSessionStore()
	require.NoError(t, store.PutNewTurn(ctx, model.Turn{SessionID: "S1", State: model.SessionActive, ExpiresAt: time.Now().Add(time.Hour)}))

	g := NewGuard(store, customers, testPolicy(), testutil.MakeNoopLogger())
	auth := g.Authorize(ctx, "S1", testPhone, testPIN)

	require.Error(t, auth.Err)
	assert.Contains(t, auth.Err.Error(), "connection reset")
	assert.False(t, auth.Authorized)
	assert.False(t, auth.Locked)
	assert.Empty(t, auth.Message)

	turn, err := store.GetLatest(ctx, "S1")
	require.NoError(t, err)
	assert.Equal(t, 0, turn.PinAttempts)
	customers.AssertNotCalled(t, "SetLockedUntil", mock.Anything, mock.Anything, mock.Anything)
}

func TestGuard_RecordFailureBoundary(t *testing.T) {
	ctx := context.Background()
	f := newGuardFixture(t, testCustomer(t))

	for i := 1; i < 3; i++ {
		out, err := f.guard.RecordFailure(ctx, "S1", testPhone)
		require.NoError(t, err)
		assert.False(t, out.Locked, "attempt %d", i)
		assert.Equal(t, 3-i, out.AttemptsRemaining)

		c, err := f.customers.GetByPhone(ctx, testPhone)
		require.NoError(t, err)
		assert.Nil(t, c.PinLockedUntil)
	}

	out, err := f.guard.RecordFailure(ctx, "S1", testPhone)
	require.NoError(t, err)
	assert.True(t, out.Locked)
	assert.Equal(t, testNow.Add(15*time.Minute), out.LockUntil)

	c, err := f.customers.GetByPhone(ctx, testPhone)
	require.NoError(t, err)
	require.NotNil(t, c.PinLockedUntil)
	assert.Equal(t, testNow.Add(15*time.Minute), *c.PinLockedUntil)
	assert.Equal(t, 0, f.attempts(t))
}

func TestGuard_RecordFailureMissingSession(t *testing.T) {
	f := newGuardFixture(t, testCustomer(t))

	_, err := f.guard.RecordFailure(context.Background(), "missing", testPhone)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestGuard_ResetAfterVerify(t *testing.T) {
	ctx := context.Background()

	for _, prior := range []int{0, 1, 2} {
		t.Run(fmt.Sprintf("prior %d", prior), func(t *testing.T) {
			f := newGuardFixture(t, testCustomer(t))
			for i := 0; i < prior; i++ {
				_, err := f.guard.RecordFailure(ctx, "S1", testPhone)
				require.NoError(t, err)
			}
			require.Equal(t, prior, f.attempts(t))

			require.True(t, f.guard.Verify(ctx, testPhone, testPIN).Verified)
			require.NoError(t, f.guard.Reset(ctx, "S1"))
			assert.Equal(t, 0, f.attempts(t))
		})
	}
}

func TestGuard_Authorize(t *testing.T) {
	ctx := context.Background()

	t.Run("success resets attempts", func(t *testing.T) {
		f := newGuardFixture(t, testCustomer(t))
		_, err := f.guard.RecordFailure(ctx, "S1", testPhone)
		require.NoError(t, err)

		auth := f.guard.Authorize(ctx, "S1", testPhone, testPIN)
		assert.True(t, auth.Authorized)
		assert.Empty(t, auth.Message)
		assert.Equal(t, 0, f.attempts(t))
	})

	t.Run("three wrong pins lock the customer", func(t *testing.T) {
		f := newGuardFixture(t, testCustomer(t))

		auth := f.guard.Authorize(ctx, "S1", testPhone, "0000")
		assert.Equal(t, "Incorrect PIN. 2 attempts remaining.", auth.Message)
		auth = f.guard.Authorize(ctx, "S1", testPhone, "0000")
		assert.Equal(t, "Incorrect PIN. 1 attempts remaining.", auth.Message)

		auth = f.guard.Authorize(ctx, "S1", testPhone, "0000")
		assert.True(t, auth.Locked)
		assert.Equal(t, "Account locked. Too many failed PIN attempts. Locked until 2025-06-01T09:15:00Z.", auth.Message)

		hashes := *f.hashCalls
		auth = f.guard.Authorize(ctx, "S1", testPhone, testPIN)
		assert.True(t, auth.Locked)
		assert.False(t, auth.Authorized)
		assert.Equal(t, hashes, *f.hashCalls)

		*f.clock = testNow.Add(15 * time.Minute)
		auth = f.guard.Authorize(ctx, "S1", testPhone, testPIN)
		assert.True(t, auth.Authorized)
	})
}

func TestHashPIN(t *testing.T) {
	hash, err := HashPIN("1234", testSalt, 100000)
	require.NoError(t, err)
	assert.Len(t, hash, 64)

	again, err := HashPIN("1234", testSalt, 100000)
	require.NoError(t, err)
	assert.Equal(t, hash, again)

	_, err = HashPIN("1234", "zz", 1)
	assert.Error(t, err)

	salt, err := NewSalt()
	require.NoError(t, err)
	assert.Len(t, salt, 32)
}
