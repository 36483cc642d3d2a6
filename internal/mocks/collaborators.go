package mocks

import (
	"context"
	"io"
	"net"

	"github.com/stretchr/testify/mock"

	"github.com/dtroode/telcoassist-server/internal/model"
)

// Classifier is a mock of model.Classifier.
type Classifier struct {
	mock.Mock
}

// NewClassifier creates a Classifier mock whose expectations are asserted when the test ends.
func NewClassifier(t interface {
	mock.TestingT
	Cleanup(func())
}) *Classifier {
	m := &Classifier{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *Classifier) Classify(ctx context.Context, message string) model.Classification {
	args := m.Called(ctx, message)
	return args.Get(0).(model.Classification)
}

// Generator is a mock of model.Generator.
type Generator struct {
	mock.Mock
}

// NewGenerator creates a Generator mock whose expectations are asserted when the test ends.
func NewGenerator(t interface {
	mock.TestingT
	Cleanup(func())
}) *Generator {
	m := &Generator{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *Generator) Generate(ctx context.Context, intent string, data map[string]any, lang model.Language) string {
	args := m.Called(ctx, intent, data, lang)
	return args.String(0)
}

// Retriever is a mock of model.Retriever.
type Retriever struct {
	mock.Mock
}

// NewRetriever creates a Retriever mock whose expectations are asserted when the test ends.
func NewRetriever(t interface {
	mock.TestingT
	Cleanup(func())
}) *Retriever {
	m := &Retriever{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *Retriever) Retrieve(ctx context.Context, query string, lang model.Language) model.Retrieval {
	args := m.Called(ctx, query, lang)
	return args.Get(0).(model.Retrieval)
}

// SessionLocker is a mock of model.SessionLocker.
type SessionLocker struct {
	mock.Mock
}

// NewSessionLocker creates a SessionLocker mock whose expectations are asserted when the test ends.
func NewSessionLocker(t interface {
	mock.TestingT
	Cleanup(func())
}) *SessionLocker {
	m := &SessionLocker{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *SessionLocker) Acquire(ctx context.Context, sessionID string) (func(), error) {
	args := m.Called(ctx, sessionID)
	release, _ := args.Get(0).(func())
	return release, args.Error(1)
}

// TokenManager is a mock of model.TokenManager.
type TokenManager struct {
	mock.Mock
}

// NewTokenManager creates a TokenManager mock whose expectations are asserted when the test ends.
func NewTokenManager(t interface {
	mock.TestingT
	Cleanup(func())
}) *TokenManager {
	m := &TokenManager{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *TokenManager) GenerateChannelToken(phoneNumber string, channel model.Channel) (string, error) {
	args := m.Called(phoneNumber, channel)
	return args.String(0), args.Error(1)
}

func (m *TokenManager) ParseChannelToken(token string) (model.ChannelClaims, error) {
	args := m.Called(token)
	return args.Get(0).(model.ChannelClaims), args.Error(1)
}

// ContextManager is a mock of model.ContextManager.
type ContextManager struct {
	mock.Mock
}

// NewContextManager creates a ContextManager mock whose expectations are asserted when the test ends.
func NewContextManager(t interface {
	mock.TestingT
	Cleanup(func())
}) *ContextManager {
	m := &ContextManager{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *ContextManager) SetClaimsToContext(ctx context.Context, claims model.ChannelClaims) context.Context {
	args := m.Called(ctx, claims)
	return args.Get(0).(context.Context)
}

func (m *ContextManager) GetClaimsFromContext(ctx context.Context) (model.ChannelClaims, bool) {
	args := m.Called(ctx)
	return args.Get(0).(model.ChannelClaims), args.Bool(1)
}

// ObjectStorage is a mock of model.ObjectStorage.
type ObjectStorage struct {
	mock.Mock
}

// NewObjectStorage creates a ObjectStorage mock whose expectations are asserted when the test ends.
func NewObjectStorage(t interface {
	mock.TestingT
	Cleanup(func())
}) *ObjectStorage {
	m := &ObjectStorage{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *ObjectStorage) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	args := m.Called(ctx, key)
	rc, _ := args.Get(0).(io.ReadCloser)
	return rc, args.Error(1)
}

func (m *ObjectStorage) Exists(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

// SecurityLayer is a mock of model.SecurityLayer.
type SecurityLayer struct {
	mock.Mock
}

// NewSecurityLayer creates a SecurityLayer mock whose expectations are asserted when the test ends.
func NewSecurityLayer(t interface {
	mock.TestingT
	Cleanup(func())
}) *SecurityLayer {
	m := &SecurityLayer{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *SecurityLayer) Listen(protocol, addr string) (net.Listener, error) {
	args := m.Called(protocol, addr)
	ln, _ := args.Get(0).(net.Listener)
	return ln, args.Error(1)
}

// ConversationService is a mock of the conversation entry point.
type ConversationService struct {
	mock.Mock
}

// NewConversationService creates a ConversationService mock whose expectations are asserted when the test ends.
func NewConversationService(t interface {
	mock.TestingT
	Cleanup(func())
}) *ConversationService {
	m := &ConversationService{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *ConversationService) SendMessage(ctx context.Context, req model.Request) (model.Response, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(model.Response), args.Error(1)
}
