package errors

import (
	stdErrors "errors"
	"fmt"
	"testing"
)

func TestBookVersionsError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *BookVersionsError
		expected string
	}{
		{
			name:     "error without cause",
			err:      New(CategoryConfig, SeverityFatal, "configuration invalid"),
			expected: "config (fatal): configuration invalid",
		},
		{
			name:     "error with cause",
			err:      Wrap(fmt.Errorf("disk full"), CategoryStorage, SeverityError, "document write failed"),
			expected: "storage (error): document write failed: disk full",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := test.err.Error(); got != test.expected {
				t.Errorf("Error() = %q, want %q", got, test.expected)
			}
		})
	}
}

func TestBookVersionsError_WithContext(t *testing.T) {
	err := ResolutionGap("Libraries.Common.WebHome", "1.0", "not published")

	if err.Context["library"] != "Libraries.Common.WebHome" {
		t.Errorf("Context[library] = %v", err.Context["library"])
	}
	if err.Context["reason"] != "not published" {
		t.Errorf("Context[reason] = %v", err.Context["reason"])
	}
}

func TestIsCategory_FollowsWrapChain(t *testing.T) {
	inner := CycleDetected("Books.B.Versions.v3", 4)
	wrapped := fmt.Errorf("resolve versions: %w", inner)

	if !IsCategory(wrapped, CategoryCycle) {
		t.Fatal("expected wrapped cycle error to be detected")
	}
	if IsCategory(fmt.Errorf("plain"), CategoryCycle) {
		t.Fatal("plain error must not match a category")
	}
	if GetCategory(stdErrors.New("x")) != CategoryInternal {
		t.Fatal("foreign errors default to internal")
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(StoreUnavailable("save", stdErrors.New("database is locked"))) {
		t.Fatal("store unavailable should be retryable")
	}
	if IsRetryable(WriteFailed("A.B", stdErrors.New("boom"))) {
		t.Fatal("write failures are not retried")
	}
}

func TestCLIErrorAdapter_ExitCodes(t *testing.T) {
	a := NewCLIErrorAdapter(false, nil)
	cases := map[error]int{
		nil:                                     0,
		ValidationError("bad"):                  2,
		NotFound("A.B"):                         4,
		PermissionDenied("u", "publish", "A.B"): 5,
		ConfigRequired("source"):                7,
		WriteFailed("A.B", nil):                 8,
		CycleDetected("v", 2):                   11,
		InternalError("x", nil):                 10,
		stdErrors.New("plain"):                  1,
	}
	for err, want := range cases {
		if got := a.ExitCodeFor(err); got != want {
			t.Errorf("ExitCodeFor(%v) = %d, want %d", err, got, want)
		}
	}
}

func TestCLIErrorAdapter_FormatError(t *testing.T) {
	a := NewCLIErrorAdapter(false, nil)
	if got := a.FormatError(ConfigRequired("destinationSpace")); got != "required configuration missing" {
		t.Errorf("FormatError() = %q", got)
	}
	if got := a.FormatError(WriteFailed("A.B", nil)); got != "storage: document write failed" {
		t.Errorf("FormatError() = %q", got)
	}
	verbose := NewCLIErrorAdapter(true, nil)
	if got := verbose.FormatError(New(CategoryRuntime, SeverityError, "queue full")); got != "runtime (error): queue full" {
		t.Errorf("verbose FormatError() = %q", got)
	}
}
