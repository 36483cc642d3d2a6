// Package mocks contains testify mocks of the model interfaces.
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/dtroode/telcoassist-server/internal/model"
)

// SessionStore is a mock of model.SessionStore.
type SessionStore struct {
	mock.Mock
}

// NewSessionStore creates a SessionStore mock whose expectations are asserted when the test ends.
func NewSessionStore(t interface {
	mock.TestingT
	Cleanup(func())
}) *SessionStore {
	m := &SessionStore{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *SessionStore) GetLatest(ctx context.Context, sessionID string) (model.Turn, error) {
	args := m.Called(ctx, sessionID)
	return args.Get(0).(model.Turn), args.Error(1)
}

func (m *SessionStore) PutNewTurn(ctx context.Context, turn model.Turn) error {
	args := m.Called(ctx, turn)
	return args.Error(0)
}

func (m *SessionStore) SaveTurn(ctx context.Context, turn model.Turn) error {
	args := m.Called(ctx, turn)
	return args.Error(0)
}

func (m *SessionStore) SaveTurnIfVersion(ctx context.Context, turn model.Turn, expectedVersion int64) error {
	args := m.Called(ctx, turn, expectedVersion)
	return args.Error(0)
}

func (m *SessionStore) IncrementPinAttempts(ctx context.Context, sessionID string) (int, error) {
	args := m.Called(ctx, sessionID)
	return args.Int(0), args.Error(1)
}

func (m *SessionStore) ResetPinAttempts(ctx context.Context, sessionID string) error {
	args := m.Called(ctx, sessionID)
	return args.Error(0)
}

func (m *SessionStore) GetCompletion(ctx context.Context, sessionID, key string) (model.ActionResult, error) {
	args := m.Called(ctx, sessionID, key)
	return args.Get(0).(model.ActionResult), args.Error(1)
}

func (m *SessionStore) RecordCompletion(ctx context.Context, sessionID, key string, result model.ActionResult) error {
	args := m.Called(ctx, sessionID, key, result)
	return args.Error(0)
}

// LedgerStore is a mock of model.LedgerStore.
type LedgerStore struct {
	mock.Mock
}

// NewLedgerStore creates a LedgerStore mock whose expectations are asserted when the test ends.
func NewLedgerStore(t interface {
	mock.TestingT
	Cleanup(func())
}) *LedgerStore {
	m := &LedgerStore{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *LedgerStore) GetCompletion(ctx context.Context, sessionID, key string) (model.ActionResult, error) {
	args := m.Called(ctx, sessionID, key)
	return args.Get(0).(model.ActionResult), args.Error(1)
}

func (m *LedgerStore) RecordCompletion(ctx context.Context, sessionID, key string, result model.ActionResult) error {
	args := m.Called(ctx, sessionID, key, result)
	return args.Error(0)
}

// CustomerStore is a mock of model.CustomerStore.
type CustomerStore struct {
	mock.Mock
}

// NewCustomerStore creates a CustomerStore mock whose expectations are asserted when the test ends.
func NewCustomerStore(t interface {
	mock.TestingT
	Cleanup(func())
}) *CustomerStore {
	m := &CustomerStore{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *CustomerStore) GetByPhone(ctx context.Context, phoneNumber string) (model.Customer, error) {
	args := m.Called(ctx, phoneNumber)
	return args.Get(0).(model.Customer), args.Error(1)
}

func (m *CustomerStore) SetLockedUntil(ctx context.Context, phoneNumber string, until time.Time) error {
	args := m.Called(ctx, phoneNumber, until)
	return args.Error(0)
}

func (m *CustomerStore) ClearLock(ctx context.Context, phoneNumber string) error {
	args := m.Called(ctx, phoneNumber)
	return args.Error(0)
}

// FeatureStore is a mock of model.FeatureStore.
type FeatureStore struct {
	mock.Mock
}

// NewFeatureStore creates a FeatureStore mock whose expectations are asserted when the test ends.
func NewFeatureStore(t interface {
	mock.TestingT
	Cleanup(func())
}) *FeatureStore {
	m := &FeatureStore{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *FeatureStore) SetFeature(ctx context.Context, phoneNumber string, active bool) error {
	args := m.Called(ctx, phoneNumber, active)
	return args.Error(0)
}

func (m *FeatureStore) GetFeature(ctx context.Context, phoneNumber string) (bool, error) {
	args := m.Called(ctx, phoneNumber)
	return args.Bool(0), args.Error(1)
}

// AuditSink is a mock of model.AuditSink.
type AuditSink struct {
	mock.Mock
}

// NewAuditSink creates a AuditSink mock whose expectations are asserted when the test ends.
func NewAuditSink(t interface {
	mock.TestingT
	Cleanup(func())
}) *AuditSink {
	m := &AuditSink{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *AuditSink) Record(ctx context.Context, rec model.AuditRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}
