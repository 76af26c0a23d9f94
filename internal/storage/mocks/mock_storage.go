package mocks

import (
	"context"
	"io"

	"datalocator/internal/model"
	"datalocator/internal/storage"

	"github.com/stretchr/testify/mock"
)

type MockBackend struct {
	mock.Mock
}

func (m *MockBackend) Stat(ctx context.Context, addr model.CloudAddress) (storage.ObjectInfo, error) {
	args := m.Called(ctx, addr)
	return args.Get(0).(storage.ObjectInfo), args.Error(1)
}

func (m *MockBackend) Get(ctx context.Context, addr model.CloudAddress) (io.ReadCloser, storage.ObjectInfo, error) {
	args := m.Called(ctx, addr)
	if f, ok := args.Get(0).(func() io.ReadCloser); ok {
		return f(), args.Get(1).(storage.ObjectInfo), args.Error(2)
	}
	rc, _ := args.Get(0).(io.ReadCloser)
	return rc, args.Get(1).(storage.ObjectInfo), args.Error(2)
}

type MockFetcher struct {
	mock.Mock
}

func (m *MockFetcher) Head(ctx context.Context, rawURL string) (storage.ObjectInfo, error) {
	args := m.Called(ctx, rawURL)
	return args.Get(0).(storage.ObjectInfo), args.Error(1)
}

func (m *MockFetcher) Fetch(ctx context.Context, rawURL string) (io.ReadCloser, storage.ObjectInfo, error) {
	args := m.Called(ctx, rawURL)
	if f, ok := args.Get(0).(func() io.ReadCloser); ok {
		return f(), args.Get(1).(storage.ObjectInfo), args.Error(2)
	}
	rc, _ := args.Get(0).(io.ReadCloser)
	return rc, args.Get(1).(storage.ObjectInfo), args.Error(2)
}
