package recognition

import "fmt"

// State is the lifecycle state of a Manager.
type State int

const (
	// StateIdle - no session exists yet; the first audio frame starts one.
	StateIdle State = iota
	// StateStarting - sessions are being created under the single-start guard.
	StateStarting
	// StateRunning - sessions are live and audio is flowing.
	StateRunning
	// StateDraining - shutdown has begun; no new audio is accepted.
	StateDraining
	// StateStopped - terminal. Sessions stopped and buffers released.
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateStarting:
		return "STARTING"
	case StateRunning:
		return "RUNNING"
	case StateDraining:
		return "DRAINING"
	case StateStopped:
		return "STOPPED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}
