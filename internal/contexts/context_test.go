package contexts

import (
	"context"
	"testing"
)

func TestRequestID(t *testing.T) {
	ctx := context.Background()

	if _, ok := GetRequestID(ctx); ok {
		t.Error("empty context should not carry a request id")
	}

	ctx = WithRequestID(ctx, "req-1")

	got, ok := GetRequestID(ctx)
	if !ok || got != "req-1" {
		t.Errorf("GetRequestID = %q, %v, want req-1, true", got, ok)
	}
}

func TestEnsureRequestID(t *testing.T) {
	ctx := EnsureRequestID(context.Background())

	first, ok := GetRequestID(ctx)
	if !ok || first == "" {
		t.Fatal("EnsureRequestID should generate a request id")
	}

	// Idempotent: a second call keeps the existing id.
	ctx = EnsureRequestID(ctx)

	second, _ := GetRequestID(ctx)
	if second != first {
		t.Errorf("EnsureRequestID replaced %q with %q", first, second)
	}
}

func TestOrganizationID(t *testing.T) {
	ctx := context.Background()

	if _, ok := GetOrganizationID(ctx); ok {
		t.Error("empty context should not carry an organization id")
	}

	ctx = WithOrganizationID(ctx, 42)

	got, ok := GetOrganizationID(ctx)
	if !ok || got != 42 {
		t.Errorf("GetOrganizationID = %d, %v, want 42, true", got, ok)
	}
}

func TestContainerShared(t *testing.T) {
	// Values set through a derived context are visible through the parent's
	// container, matching the one-container-per-request model.
	ctx := WithRequestID(context.Background(), "req-1")
	ctx2 := WithOrganizationID(ctx, 7)

	if got, ok := GetOrganizationID(ctx2); !ok || got != 7 {
		t.Errorf("GetOrganizationID = %d, %v, want 7, true", got, ok)
	}

	if got, ok := GetOrganizationID(ctx); !ok || got != 7 {
		t.Errorf("organization id not visible through shared container: %d, %v", got, ok)
	}
}

func TestImpersonatorID(t *testing.T) {
	ctx := WithImpersonatorID(context.Background(), 3)

	got, ok := GetImpersonatorID(ctx)
	if !ok || got != 3 {
		t.Errorf("GetImpersonatorID = %d, %v, want 3, true", got, ok)
	}
}
