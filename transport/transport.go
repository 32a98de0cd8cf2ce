package transport

import (
	"context"
	"fmt"
)

// Frame is a single CAN frame, in either direction.
type Frame struct {
	ID       uint32
	Extended bool
	RTR      bool
	Length   uint8
	Data     [8]byte
}

// Transport is the platform-specific link to a physical or virtual CAN
// bus. Implementations live behind build tags: socketcan_linux.go for
// Linux, usbcan_windows.go for Windows.
type Transport interface {
	// Open establishes the link. ctx bounds only the connect step;
	// it does not cancel an already-open transport.
	Open(ctx context.Context) error

	// Send transmits f. Safe to call concurrently with frame delivery.
	Send(f Frame) error

	// OnFrame registers the callback invoked for every received frame.
	// Must be called before Open.
	OnFrame(func(Frame))

	// Close releases the underlying link. Safe to call more than once.
	Close() error
}

// ResetFrame is a one-shot frame parsed from the --reset flag's
// <can_id>#<hex_bytes> grammar: a 3-hex-digit standard id or an
// 8-hex-digit extended id, a literal '#', then zero to eight bytes of
// hex-encoded data.
type ResetFrame struct {
	ID       uint32
	Extended bool
	Data     []byte
}

// ParseResetFrame parses s per the --reset grammar.
func ParseResetFrame(s string) (ResetFrame, error) {
	sep := -1
	for i, r := range s {
		if r == '#' {
			sep = i
			break
		}
	}
	if sep < 0 {
		return ResetFrame{}, fmt.Errorf("transport: reset frame %q missing '#'", s)
	}
	idPart, dataPart := s[:sep], s[sep+1:]

	var id uint32
	var extended bool
	switch len(idPart) {
	case 3:
		extended = false
	case 8:
		extended = true
	default:
		return ResetFrame{}, fmt.Errorf("transport: reset frame id %q must be 3 or 8 hex digits", idPart)
	}
	if _, err := fmt.Sscanf(idPart, "%x", &id); err != nil {
		return ResetFrame{}, fmt.Errorf("transport: reset frame id %q is not hex: %w", idPart, err)
	}

	if len(dataPart)%2 != 0 {
		return ResetFrame{}, fmt.Errorf("transport: reset frame data %q has an odd number of hex digits", dataPart)
	}
	n := len(dataPart) / 2
	if n > 8 {
		return ResetFrame{}, fmt.Errorf("transport: reset frame data %q exceeds 8 bytes", dataPart)
	}
	data := make([]byte, n)
	for i := range data {
		var b uint32
		if _, err := fmt.Sscanf(dataPart[i*2:i*2+2], "%x", &b); err != nil {
			return ResetFrame{}, fmt.Errorf("transport: reset frame data %q is not hex: %w", dataPart, err)
		}
		data[i] = byte(b)
	}

	return ResetFrame{ID: id, Extended: extended, Data: data}, nil
}

// Frame converts r into a wire Frame, padding Data to 8 bytes and
// setting Length to the number of bytes actually supplied.
func (r ResetFrame) Frame() Frame {
	var f Frame
	f.ID = r.ID
	f.Extended = r.Extended
	f.Length = uint8(len(r.Data))
	copy(f.Data[:], r.Data)
	return f
}
