package session

// Execution state of the emulator as seen by the session
type State uint8

const (
	State_Disconnected State = iota
	State_Running
	State_Stopped
)

func (s State) String() string {
	switch s {
	case State_Disconnected:
		return "disconnected"
	case State_Running:
		return "running"
	case State_Stopped:
		return "stopped"
	}

	return "unknown"
}

// Why the emulator stopped
type StopReason uint8

const (
	// An enabled breakpoint of this client was hit
	StopReason_Breakpoint StopReason = iota
	// The stop was requested (Stop, Step, StepOut)
	StopReason_Requested
	// The CPU jammed
	StopReason_Jam
)

func (r StopReason) String() string {
	switch r {
	case StopReason_Breakpoint:
		return "breakpoint"
	case StopReason_Requested:
		return "requested"
	case StopReason_Jam:
		return "jam"
	}

	return "unknown"
}

type StopEvent struct {
	PC     uint16
	Reason StopReason
}
