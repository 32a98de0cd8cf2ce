package session

import "github.com/canflash/canflash/canframe"

// Frame is a single CAN frame, in either direction. Length is the data
// length code; frames whose Length is not exactly 8 are dropped by the
// core's filter before they ever reach the state machine.
type Frame struct {
	ID       uint32
	Extended bool
	Length   uint8
	Data     [canframe.PayloadSize]byte
}

// Transport is the minimal send capability the state machine needs. The
// concrete CAN transport (raw SocketCAN, USB-CAN adapter, or a test
// fake) lives entirely outside this package; Session never imports it.
type Transport interface {
	Send(Frame) error
}

// State is one of the session's three live states, plus the terminal
// Done state.
type State int

const (
	Init State = iota
	Flashing
	Reading
	Done
)

func (s State) String() string {
	switch s {
	case Init:
		return "Init"
	case Flashing:
		return "Flashing"
	case Reading:
		return "Reading"
	case Done:
		return "Done"
	default:
		return "Unknown"
	}
}

// Mode selects whether the session writes (and optionally verifies) an
// image, or reads the target's flash back into one.
type Mode int

const (
	ModeWrite Mode = iota
	ModeRead
)
