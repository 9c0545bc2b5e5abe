package resolver

// State is the resolution lifecycle phase.
type State string

const (
	StateIdle          State = "idle"
	StateLocked        State = "locked"
	StateLocating      State = "locating"
	StateEndpointFound State = "endpoint_found"
	StateLaunching     State = "launching"
	StatePolling       State = "polling"
	StateConnected     State = "connected"
	StateDone          State = "done"
	StateFailed        State = "failed"
)

func (s State) String() string {
	return string(s)
}
