package resolver

import (
	"errors"

	"github.com/danmuck/heimdallr-client/internal/config"
	"github.com/danmuck/heimdallr-client/internal/launcher"
	"github.com/danmuck/heimdallr-client/internal/locator"
	"github.com/danmuck/heimdallr-client/internal/lock"
	"github.com/danmuck/heimdallr-client/internal/registry"
	"github.com/danmuck/heimdallr-client/internal/rpc"
	"github.com/danmuck/heimdallr-client/internal/uri"
)

// Process exit codes. External tooling branches on these values.
const (
	ExitOK                  = 0
	ExitNotFound            = 1
	ExitUnhandled           = -1
	ExitInvalid             = -2
	ExitPlatformUnsupported = -3
	ExitInvalidURI          = -4
	ExitTooManyEndpoints    = -5
	ExitPollTimeout         = -6
	ExitLockContention      = -7
)

var exitCodes = []struct {
	target error
	code   int
}{
	{locator.ErrNotFound, ExitNotFound},
	{config.ErrSettingsMissing, ExitUnhandled},
	{config.ErrSettingsInvalid, ExitInvalid},
	{rpc.ErrCall, ExitInvalid},
	{launcher.ErrPlatformUnsupported, ExitPlatformUnsupported},
	{uri.ErrInvalidURI, ExitInvalidURI},
	{ErrTooManyInvalidEndpoints, ExitTooManyEndpoints},
	{registry.ErrPollTimeout, ExitPollTimeout},
	{lock.ErrMarkerTimeout, ExitLockContention},
	{lock.ErrPriorityLost, ExitLockContention},
}

// ExitCode maps err to the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	for _, ec := range exitCodes {
		if errors.Is(err, ec.target) {
			return ec.code
		}
	}
	return ExitUnhandled
}
