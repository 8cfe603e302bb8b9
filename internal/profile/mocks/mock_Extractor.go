// Package mocks provides test doubles for profile extractors.
package mocks

import (
	"context"

	mock "github.com/stretchr/testify/mock"

	"github.com/sells-group/contact-finder/internal/model"
)

// MockExtractor is a mock type for the Extractor interface.
type MockExtractor struct {
	mock.Mock
	ExtractorName string
}

// Name returns ExtractorName, or "mock" when unset.
func (_m *MockExtractor) Name() string {
	if _m.ExtractorName == "" {
		return "mock"
	}
	return _m.ExtractorName
}

// Extract provides a mock function with given fields: ctx, ref
func (_m *MockExtractor) Extract(ctx context.Context, ref model.ProfileRef) (*model.Profile, error) {
	ret := _m.Called(ctx, ref)

	if len(ret) == 0 {
		panic("no return value specified for Extract")
	}

	var r0 *model.Profile
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, model.ProfileRef) (*model.Profile, error)); ok {
		return rf(ctx, ref)
	}
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*model.Profile)
	}
	r1 = ret.Error(1)

	return r0, r1
}

// NewMockExtractor creates a new instance of MockExtractor. It also registers
// a testing interface on the mock and a cleanup function to assert the mocks
// expectations.
func NewMockExtractor(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockExtractor {
	m := &MockExtractor{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
