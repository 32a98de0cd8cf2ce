package main

import (
	"github.com/canflash/canflash/session"
	"github.com/canflash/canflash/transport"
)

// sessionBridge adapts a transport.Transport into the session.Transport
// interface and fans received frames into a single channel, satisfying
// the state machine's single-consumer requirement.
type sessionBridge struct {
	t      transport.Transport
	frames chan session.Frame
}

func newSessionBridge(t transport.Transport) *sessionBridge {
	b := &sessionBridge{t: t, frames: make(chan session.Frame, 32)}
	t.OnFrame(b.onFrame)
	return b
}

func (b *sessionBridge) onFrame(f transport.Frame) {
	b.frames <- session.Frame{
		ID:       f.ID,
		Extended: f.Extended,
		Length:   f.Length,
		Data:     f.Data,
	}
}

func (b *sessionBridge) Send(f session.Frame) error {
	return b.t.Send(transport.Frame{
		ID:       f.ID,
		Extended: f.Extended,
		Length:   f.Length,
		Data:     f.Data,
	})
}

// sendReset transmits a one-shot reset frame ahead of the bootloader
// dialogue, per the --reset flag's grammar.
func (b *sessionBridge) sendReset(rf transport.ResetFrame) error {
	return b.t.Send(rf.Frame())
}
