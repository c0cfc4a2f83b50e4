package errors

import (
	"errors"
	"fmt"
	"testing"
)

// =============================================================================
// Test Error Types and Constructors
// =============================================================================

func TestNotFound(t *testing.T) {
	err := NotFound("draw not found")

	if err.Kind != ErrNotFound {
		t.Errorf("expected Kind to be ErrNotFound (%d), got %d", ErrNotFound, err.Kind)
	}
	if err.Message != "draw not found" {
		t.Errorf("expected Message to be 'draw not found', got '%s'", err.Message)
	}
	if err.Err != nil {
		t.Errorf("expected Err to be nil, got %v", err.Err)
	}
}

func TestNotFoundf(t *testing.T) {
	err := NotFoundf("participation %s not found", "p-1")

	if err.Kind != ErrNotFound {
		t.Errorf("expected Kind to be ErrNotFound, got %v", err.Kind)
	}
	if err.Message != "participation p-1 not found" {
		t.Errorf("unexpected message: %q", err.Message)
	}
}

func TestInvalidInputf(t *testing.T) {
	err := InvalidInputf("number %d out of range [1, %d]", 11, 10)

	if err.Kind != ErrInvalidInput {
		t.Errorf("expected Kind to be ErrInvalidInput, got %v", err.Kind)
	}
	if err.Message != "number 11 out of range [1, 10]" {
		t.Errorf("unexpected message: %q", err.Message)
	}
}

func TestNumberUnavailable(t *testing.T) {
	err := NumberUnavailable([]int{4, 42})

	if err.Kind != ErrNumberUnavailable {
		t.Errorf("expected ErrNumberUnavailable, got %v", err.Kind)
	}
	if err.Message != "numbers already taken: [4 42]" {
		t.Errorf("unexpected message: %q", err.Message)
	}
}

func TestConflictingConfirmation(t *testing.T) {
	err := ConflictingConfirmation([]int{7})

	if err.Kind != ErrConflictingConfirmation {
		t.Errorf("expected ErrConflictingConfirmation, got %v", err.Kind)
	}
}

func TestContention_WrapsCause(t *testing.T) {
	cause := errors.New("version conflict")
	err := Contention(5, cause)

	if err.Kind != ErrContention {
		t.Errorf("expected ErrContention, got %v", err.Kind)
	}
	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to find the cause")
	}
	if err.Error() != "draw is busy, gave up after 5 attempts: version conflict" {
		t.Errorf("unexpected error string: %q", err.Error())
	}
}

func TestAlreadyResolved(t *testing.T) {
	err := AlreadyResolved("d-1")

	if err.Kind != ErrAlreadyResolved {
		t.Errorf("expected ErrAlreadyResolved, got %v", err.Kind)
	}
	if err.Message != "draw d-1 already resolved" {
		t.Errorf("unexpected message: %q", err.Message)
	}
}

func TestInternal(t *testing.T) {
	cause := errors.New("disk full")
	err := Internal(cause)

	if err.Kind != ErrInternal {
		t.Errorf("expected ErrInternal, got %v", err.Kind)
	}
	if err.Unwrap() != cause {
		t.Error("expected Unwrap to return the cause")
	}
}

// =============================================================================
// Test Classification Helpers
// =============================================================================

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"app error", Unauthorized("operators only"), ErrUnauthorized},
		{"wrapped app error", fmt.Errorf("claim: %w", Timeout(nil)), ErrTimeout},
		{"plain error", errors.New("boom"), ErrInternal},
		{"nil", nil, ErrInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsKind(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", NumberUnavailable([]int{1}))

	if !IsKind(err, ErrNumberUnavailable) {
		t.Error("expected IsKind to match ErrNumberUnavailable")
	}
	if IsKind(err, ErrContention) {
		t.Error("expected IsKind not to match ErrContention")
	}
}

func TestKind_Retryable(t *testing.T) {
	tests := []struct {
		kind Kind
		want bool
	}{
		{ErrNumberUnavailable, true},
		{ErrConflictingConfirmation, true},
		{ErrContention, true},
		{ErrTimeout, true},
		{ErrInvalidInput, false},
		{ErrUnauthorized, false},
		{ErrAlreadyResolved, false},
		{ErrNotFound, false},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			if got := tt.kind.Retryable(); got != tt.want {
				t.Errorf("Retryable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestKind_String(t *testing.T) {
	if ErrAlreadyResolved.String() != "already_resolved" {
		t.Errorf("unexpected name %q", ErrAlreadyResolved.String())
	}
	if Kind(99).String() != "kind(99)" {
		t.Errorf("unexpected name for unknown kind %q", Kind(99).String())
	}
}
