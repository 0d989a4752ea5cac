package errors

import (
	"fmt"
	"testing"
)

func TestExitCodeForTypedError(t *testing.T) {
	err := New(CodeUpstream, "aggregator returned garbage")
	if got := ExitCode(err); got != int(CodeUpstream) {
		t.Fatalf("exit code = %d, want %d", got, CodeUpstream)
	}
}

func TestExitCodeUnwrapsWrappedError(t *testing.T) {
	inner := Wrap(CodeSubmission, "broadcast transaction", fmt.Errorf("nonce too low"))
	outer := fmt.Errorf("execute swap: %w", inner)
	if got := ExitCode(outer); got != int(CodeSubmission) {
		t.Fatalf("exit code = %d, want %d", got, CodeSubmission)
	}
}

func TestExitCodeDefaults(t *testing.T) {
	if got := ExitCode(nil); got != 0 {
		t.Fatalf("exit code for nil = %d, want 0", got)
	}
	if got := ExitCode(fmt.Errorf("plain")); got != int(CodeInternal) {
		t.Fatalf("exit code for untyped = %d, want %d", got, CodeInternal)
	}
}

func TestTypeNames(t *testing.T) {
	cases := map[Code]string{
		CodeConfig:     "config",
		CodeUpstream:   "upstream_api",
		CodeApproval:   "approval",
		CodeSigning:    "signing",
		CodeAssembly:   "assembly",
		CodeSubmission: "submission",
		Code(999):      "internal",
	}
	for code, want := range cases {
		if got := code.TypeName(); got != want {
			t.Errorf("TypeName(%d) = %q, want %q", code, got, want)
		}
	}
}
