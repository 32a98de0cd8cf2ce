package session

import "fmt"

// ConfigurationError indicates a problem discovered before a session can
// start: an unknown device alias, a malformed reset-frame string, and
// the like. Configuration errors abort before Run is ever called.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s", e.Reason)
}

// TransportError wraps a failure reported by Transport.Send. All
// transport errors are treated as fatal by the state machine.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error during %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ProtocolMismatch indicates a signature or protocol-version disagreement
// reported in BOOTLOADER_START. A version mismatch is recoverable with
// the force option; a signature mismatch is never recoverable.
type ProtocolMismatch struct {
	Reason string
}

func (e *ProtocolMismatch) Error() string {
	return fmt.Sprintf("protocol mismatch: %s", e.Reason)
}

// PeerError wraps a *_ERROR command received from the target.
type PeerError struct {
	Command string
	Address uint32
}

func (e *PeerError) Error() string {
	return fmt.Sprintf("%s at address %#08x", e.Command, e.Address)
}

// VerifyMismatch indicates that a byte read back from the target during
// verification did not match the image.
type VerifyMismatch struct {
	Address  uint32
	Expected byte
	Actual   byte
}

func (e *VerifyMismatch) Error() string {
	return fmt.Sprintf("verify mismatch at address %#08x: expected %#02x, got %#02x",
		e.Address, e.Expected, e.Actual)
}

// InvariantViolation indicates the target's reported address-fragment
// disagreed with the host's current_address during a read pass.
type InvariantViolation struct {
	Reason  string
	Address uint32
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("invariant violation at address %#08x: %s", e.Address, e.Reason)
}
