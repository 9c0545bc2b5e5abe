// Package launcher starts the host application on a resolved database and
// presents failures to the desktop user. Core code only sees Platform.
package launcher

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/danmuck/heimdallr-client/internal/tools"
	"github.com/rs/zerolog/log"
)

var (
	ErrPlatformUnsupported = errors.New("launcher: platform not supported for opening IDA")
	ErrLaunchFailed        = errors.New("launcher: launch failed")
	ErrAppRequired         = errors.New("launcher: application path required")
)

// Platform is the per-OS capability set.
type Platform interface {
	Launch(ctx context.Context, app, path string) error
	Notify(title, message string) error
}

// ForOS selects the implementation for goos.
func ForOS(goos string, runner tools.CommandRunner) Platform {
	if runner == nil {
		runner = tools.ExecRunner{}
	}
	switch goos {
	case "darwin":
		return Darwin{Runner: runner}
	case "linux":
		return Linux{Runner: runner, LookPath: exec.LookPath}
	case "windows":
		return Windows{Runner: runner}
	default:
		return Unsupported{OS: goos}
	}
}

// Darwin opens a new application instance through LaunchServices.
type Darwin struct {
	Runner tools.CommandRunner
}

func (d Darwin) Launch(ctx context.Context, app, path string) error {
	if strings.TrimSpace(app) == "" {
		return ErrAppRequired
	}
	log.Info().Str("app", app).Str("path", path).Msg("launcher.darwin open")
	_, stderr, exitCode, err := d.Runner.Run(ctx, "/usr/bin/open", "-n", app, path)
	if err != nil {
		return fmt.Errorf("%w: open exit=%d stderr=%q: %v", ErrLaunchFailed, exitCode, strings.TrimSpace(string(stderr)), err)
	}
	return nil
}

// Notify shows a dialog. Title and message travel through the environment so
// neither is interpreted as AppleScript.
func (d Darwin) Notify(title, message string) error {
	args := []string{
		"-e", `set msg_title to (system attribute "msg_title")`,
		"-e", `set msg_error to (system attribute "msg_error")`,
		"-e", `Tell application "System Events" to display dialog msg_error with title msg_title`,
	}
	env := []string{"msg_title=" + title, "msg_error=" + message}
	_, err := d.Runner.Start("/usr/bin/osascript", args, env)
	return err
}

type Linux struct {
	Runner   tools.CommandRunner
	LookPath func(string) (string, error)
}

func (l Linux) Launch(ctx context.Context, app, path string) error {
	return startDetached(l.Runner, app, path)
}

// Notify uses the first available desktop dialog tool.
func (l Linux) Notify(title, message string) error {
	lookPath := l.LookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	if bin, err := lookPath("zenity"); err == nil {
		_, err := l.Runner.Start(bin, []string{"--error", "--title", title, "--text", message}, nil)
		return err
	}
	if bin, err := lookPath("notify-send"); err == nil {
		_, err := l.Runner.Start(bin, []string{"--urgency=critical", title, message}, nil)
		return err
	}
	log.Error().Str("title", title).Str("message", message).Msg("launcher.linux no dialog tool available")
	return nil
}

type Windows struct {
	Runner tools.CommandRunner
}

func (w Windows) Launch(ctx context.Context, app, path string) error {
	return startDetached(w.Runner, app, path)
}

func (w Windows) Notify(title, message string) error {
	return messageBox(title, message)
}

// Unsupported cannot open the host application.
type Unsupported struct {
	OS string
}

func (u Unsupported) Launch(ctx context.Context, app, path string) error {
	return fmt.Errorf("%w: %s", ErrPlatformUnsupported, u.OS)
}

func (u Unsupported) Notify(title, message string) error {
	log.Error().Str("title", title).Str("message", message).Msg("launcher notify")
	return nil
}

func startDetached(runner tools.CommandRunner, app, path string) error {
	if strings.TrimSpace(app) == "" {
		return ErrAppRequired
	}
	log.Info().Str("app", app).Str("path", path).Msg("launcher start")
	pid, err := runner.Start(app, []string{path}, nil)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrLaunchFailed, app, err)
	}
	log.Info().Int("pid", pid).Msg("launcher started host")
	return nil
}
