package provider

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockCredentialProvider struct {
	mock.Mock
}

func (m *MockCredentialProvider) Authenticate(ctx context.Context, identifier, secret string) (Credentials, error) {
	args := m.Called(ctx, identifier, secret)
	return args.Get(0).(Credentials), args.Error(1)
}

func (m *MockCredentialProvider) Register(ctx context.Context, identifier, secret string) (Credentials, error) {
	args := m.Called(ctx, identifier, secret)
	return args.Get(0).(Credentials), args.Error(1)
}

func (m *MockCredentialProvider) RefreshToken(ctx context.Context, force bool) (Token, error) {
	args := m.Called(ctx, force)
	return args.Get(0).(Token), args.Error(1)
}

func (m *MockCredentialProvider) Revoke(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type MockDocumentStore struct {
	mock.Mock
}

func (m *MockDocumentStore) Get(ctx context.Context, collection, id string) (Document, error) {
	args := m.Called(ctx, collection, id)
	return args.Get(0).(Document), args.Error(1)
}

func (m *MockDocumentStore) Put(ctx context.Context, collection, id string, fields map[string]any) error {
	args := m.Called(ctx, collection, id, fields)
	return args.Error(0)
}

func (m *MockDocumentStore) ListAll(ctx context.Context, collection string) ([]Document, error) {
	args := m.Called(ctx, collection)
	if docs, ok := args.Get(0).([]Document); ok {
		return docs, args.Error(1)
	}
	return nil, args.Error(1)
}

type MockLiveFeed struct {
	mock.Mock
}

func (m *MockLiveFeed) Subscribe(ctx context.Context, q Query, fn SnapshotFunc) (UnsubscribeFunc, error) {
	args := m.Called(ctx, q, fn)
	if unsub, ok := args.Get(0).(UnsubscribeFunc); ok {
		return unsub, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockLiveFeed) Append(ctx context.Context, collection string, fields map[string]any) (string, error) {
	args := m.Called(ctx, collection, fields)
	return args.String(0), args.Error(1)
}
