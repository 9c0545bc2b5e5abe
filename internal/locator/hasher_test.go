package locator

import (
	"context"
	"errors"
	"testing"
)

type hashFakeRunner struct {
	name   string
	args   []string
	stdout string
	err    error
}

func (r *hashFakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, int32, error) {
	r.name = name
	r.args = args
	if r.err != nil {
		return nil, []byte("boom"), 2, r.err
	}
	return []byte(r.stdout), nil, 0, nil
}

func (r *hashFakeRunner) Start(string, []string, []string) (int, error) {
	return 0, errors.New("not supported")
}

func TestCommandHasherAppendsPath(t *testing.T) {
	runner := &hashFakeRunner{stdout: "B058DE795064344A4074252E15B9FD39  /data/test.i64\n"}
	h := CommandHasher{Command: []string{"idbhash", "--input"}, Runner: runner}
	got, err := h.Hash(context.Background(), "/data/test.i64")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if got != "b058de795064344a4074252e15b9fd39" {
		t.Fatalf("unexpected digest: %q", got)
	}
	if runner.name != "idbhash" || len(runner.args) != 2 || runner.args[1] != "/data/test.i64" {
		t.Fatalf("unexpected invocation: %s %v", runner.name, runner.args)
	}
}

func TestCommandHasherRejectsBadOutput(t *testing.T) {
	h := CommandHasher{Command: []string{"idbhash"}, Runner: &hashFakeRunner{stdout: "not-hex"}}
	if _, err := h.Hash(context.Background(), "x"); !errors.Is(err, ErrHashCommand) {
		t.Fatalf("expected ErrHashCommand, got %v", err)
	}
	h = CommandHasher{Command: []string{"idbhash"}, Runner: &hashFakeRunner{err: errors.New("exit 2")}}
	if _, err := h.Hash(context.Background(), "x"); !errors.Is(err, ErrHashCommand) {
		t.Fatalf("expected ErrHashCommand, got %v", err)
	}
	if _, err := (CommandHasher{}).Hash(context.Background(), "x"); !errors.Is(err, ErrHashCommand) {
		t.Fatalf("expected ErrHashCommand for empty command, got %v", err)
	}
}
