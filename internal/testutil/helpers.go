package testutil

import (
	"context"
	"testing"
	"time"
)

// TestContext returns a context that expires with the test.
func TestContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// Ptr returns a pointer to v, for optional request and entity fields.
func Ptr[T any](v T) *T {
	return &v
}
