package apperrors

import (
	"errors"
	"fmt"
	"testing"

	"connectrpc.com/connect"
)

func TestErrorsIsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("toggle: %w", NotFound("item", "abc"))

	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected wrapped error to match ErrNotFound")
	}
	if errors.Is(err, ErrValidation) {
		t.Fatalf("did not expect match with ErrValidation")
	}
	if CodeOf(err) != CodeNotFound {
		t.Fatalf("CodeOf = %q, want %q", CodeOf(err), CodeNotFound)
	}
}

func TestSyncUnwrapsCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Sync("items", cause)

	if !errors.Is(err, cause) {
		t.Fatal("expected Sync error to unwrap to its cause")
	}
	if got := err.Error(); got != "failed to persist items: disk full" {
		t.Fatalf("Error() = %q", got)
	}
}

func TestToConnect(t *testing.T) {
	tests := []struct {
		err  error
		want connect.Code
	}{
		{NotFound("participant", "p1"), connect.CodeNotFound},
		{Validation("quantity", "must be positive"), connect.CodeInvalidArgument},
		{Sync("assignments", errors.New("busy")), connect.CodeUnavailable},
		{Invariant("fractions sum to 0.9"), connect.CodeInternal},
		{PermissionDenied("owner only"), connect.CodePermissionDenied},
		{errors.New("plain"), connect.CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			if got := ToConnect(tt.err).Code(); got != tt.want {
				t.Errorf("ToConnect(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
