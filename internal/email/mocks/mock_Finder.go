// Package mocks provides test doubles for email finders.
package mocks

import (
	"context"

	mock "github.com/stretchr/testify/mock"

	"github.com/sells-group/contact-finder/internal/model"
)

// MockFinder is a mock type for the Finder interface.
type MockFinder struct {
	mock.Mock
	FinderName string
}

// Name returns FinderName, or "mock" when unset.
func (_m *MockFinder) Name() string {
	if _m.FinderName == "" {
		return "mock"
	}
	return _m.FinderName
}

// Find provides a mock function with given fields: ctx, id, domain
func (_m *MockFinder) Find(ctx context.Context, id model.Identity, domain string) (string, error) {
	ret := _m.Called(ctx, id, domain)

	if len(ret) == 0 {
		panic("no return value specified for Find")
	}

	if rf, ok := ret.Get(0).(func(context.Context, model.Identity, string) (string, error)); ok {
		return rf(ctx, id, domain)
	}
	return ret.String(0), ret.Error(1)
}

// NewMockFinder creates a new instance of MockFinder. It also registers a
// testing interface on the mock and a cleanup function to assert the mocks
// expectations.
func NewMockFinder(t interface {
	mock.TestingT
	Cleanup(func())
}, name string) *MockFinder {
	m := &MockFinder{FinderName: name}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
