package locator

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/danmuck/heimdallr-client/internal/tools"
)

var ErrHashCommand = errors.New("locator: hash command failed")

// Hasher computes the content hash that identifies an artifact.
type Hasher interface {
	Hash(ctx context.Context, path string) (string, error)
}

// HasherFunc adapts a function to Hasher.
type HasherFunc func(ctx context.Context, path string) (string, error)

func (f HasherFunc) Hash(ctx context.Context, path string) (string, error) {
	return f(ctx, path)
}

// FileMD5 hashes the raw file content.
type FileMD5 struct{}

func (FileMD5) Hash(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// CommandHasher delegates to an external program that prints the hex digest
// of the database's input file, e.g. a reader for the container format.
// The candidate path is appended as the last argument.
type CommandHasher struct {
	Command []string
	Runner  tools.CommandRunner
}

func (c CommandHasher) Hash(ctx context.Context, path string) (string, error) {
	if len(c.Command) == 0 || strings.TrimSpace(c.Command[0]) == "" {
		return "", fmt.Errorf("%w: empty command", ErrHashCommand)
	}
	runner := c.Runner
	if runner == nil {
		runner = tools.ExecRunner{}
	}
	args := append(append([]string{}, c.Command[1:]...), path)
	stdout, stderr, exitCode, err := runner.Run(ctx, c.Command[0], args...)
	if err != nil {
		return "", fmt.Errorf(
			"%w: cmd=%s exit=%d stderr=%q: %v",
			ErrHashCommand,
			c.Command[0],
			exitCode,
			strings.TrimSpace(string(stderr)),
			err,
		)
	}
	fields := strings.Fields(string(stdout))
	if len(fields) == 0 {
		return "", fmt.Errorf("%w: cmd=%s printed no digest", ErrHashCommand, c.Command[0])
	}
	digest := strings.ToLower(fields[0])
	if _, err := hex.DecodeString(digest); err != nil {
		return "", fmt.Errorf("%w: cmd=%s printed non-hex digest %q", ErrHashCommand, c.Command[0], digest)
	}
	return digest, nil
}
