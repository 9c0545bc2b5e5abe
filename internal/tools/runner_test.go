package tools

import (
	"context"
	"runtime"
	"strings"
	"testing"
)

func TestExecRunnerMissingBinary(t *testing.T) {
	_, _, code, err := ExecRunner{}.Run(context.Background(), "heimdallr-definitely-missing-binary")
	if err == nil {
		t.Fatalf("expected error for missing binary")
	}
	if code != 127 {
		t.Fatalf("expected exit 127, got %d", code)
	}
}

func TestExecRunnerCapturesStdout(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("no echo binary on windows")
	}
	stdout, _, code, err := ExecRunner{}.Run(context.Background(), "echo", "abc")
	if err != nil {
		t.Fatalf("run echo: %v", err)
	}
	if code != 0 {
		t.Fatalf("unexpected exit code: %d", code)
	}
	if strings.TrimSpace(string(stdout)) != "abc" {
		t.Fatalf("unexpected stdout: %q", string(stdout))
	}
}

func TestExecRunnerNonZeroExit(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("no false binary on windows")
	}
	_, _, code, err := ExecRunner{}.Run(context.Background(), "false")
	if err == nil {
		t.Fatalf("expected error from false")
	}
	if code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
}
