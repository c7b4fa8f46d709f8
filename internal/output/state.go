package output

import "time"

// State represents the lifecycle state of a filter's output.
type State string

// Lifecycle states.
const (
	StateIdle           State = "idle"            // No session
	StateConnecting     State = "connecting"      // Output started, not yet reported active
	StateActive         State = "active"          // Output reports active
	StateRetryPending   State = "retry_pending"   // Connect attempt timed out, restarting
	StateRestartPending State = "restart_pending" // Settings or resolution changed, restarting
)

// AllStates lists every lifecycle state.
var AllStates = []State{StateIdle, StateConnecting, StateActive, StateRetryPending, StateRestartPending}

func stateLabels() []string {
	labels := make([]string, len(AllStates))
	for i, s := range AllStates {
		labels[i] = string(s)
	}
	return labels
}

// StateChangeFunc is notified of every state transition. It is called with
// the filter lock held and must not call back into the Filter.
type StateChangeFunc func(filter string, from, to State, reason string)

// Status is a point-in-time snapshot of a filter.
type Status struct {
	Filter         string
	State          State
	FilterActive   bool
	SessionActive  bool
	StoredRev      uint64
	ActiveRev      uint64
	Width          uint32
	Height         uint32
	OutputType     string
	AudioMode      string
	BufferedFrames uint64
	ConnectAt      time.Time
	LastError      string
}
