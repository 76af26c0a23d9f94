package mocks

import (
	"context"

	"datalocator/internal/model"
	"github.com/stretchr/testify/mock"
)

type MockRowService struct {
	mock.Mock
}

func (m *MockRowService) Summarize(fields map[string]any, ov model.CloudOverride) model.Summary {
	args := m.Called(fields, ov)
	return args.Get(0).(model.Summary)
}

func (m *MockRowService) Probe(ctx context.Context, fields map[string]any, ov model.CloudOverride) (model.ProbeResult, error) {
	args := m.Called(ctx, fields, ov)
	return args.Get(0).(model.ProbeResult), args.Error(1)
}

func (m *MockRowService) Download(ctx context.Context, fields map[string]any, dest string, ov model.CloudOverride) (string, error) {
	args := m.Called(ctx, fields, dest, ov)
	return args.String(0), args.Error(1)
}
