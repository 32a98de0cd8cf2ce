//go:build linux

package transport

import (
	"context"
	"fmt"
	"sync"

	"github.com/brutella/can"
)

// SocketCAN identifier flag bits, per the kernel's struct can_frame
// wire layout that github.com/brutella/can mirrors directly in its
// Frame.ID field.
const (
	effFlag = 0x80000000
	effMask = 0x1FFFFFFF
	sffMask = 0x000007FF
)

// SocketCANTransport talks to a Linux SocketCAN interface (e.g. can0,
// vcan0) through github.com/brutella/can.
type SocketCANTransport struct {
	iface string

	mu      sync.Mutex
	bus     *can.Bus
	onFrame func(Frame)
}

// NewSocketCAN returns a transport bound to the named SocketCAN
// interface. Open must be called before use.
func NewSocketCAN(iface string) *SocketCANTransport {
	return &SocketCANTransport{iface: iface}
}

func (t *SocketCANTransport) OnFrame(f func(Frame)) {
	t.mu.Lock()
	t.onFrame = f
	t.mu.Unlock()
}

func (t *SocketCANTransport) Open(ctx context.Context) error {
	bus, err := can.NewBusForInterfaceWithName(t.iface)
	if err != nil {
		return fmt.Errorf("transport: open socketcan interface %s: %w", t.iface, err)
	}
	bus.SubscribeFunc(func(frm can.Frame) {
		t.mu.Lock()
		cb := t.onFrame
		t.mu.Unlock()
		if cb != nil {
			cb(fromCANFrame(frm))
		}
	})

	t.mu.Lock()
	t.bus = bus
	t.mu.Unlock()

	go bus.ConnectAndPublish()

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

func (t *SocketCANTransport) Send(f Frame) error {
	t.mu.Lock()
	bus := t.bus
	t.mu.Unlock()
	if bus == nil {
		return fmt.Errorf("transport: socketcan interface %s not open", t.iface)
	}
	return bus.Publish(toCANFrame(f))
}

func (t *SocketCANTransport) Close() error {
	t.mu.Lock()
	bus := t.bus
	t.bus = nil
	t.mu.Unlock()
	if bus == nil {
		return nil
	}
	return bus.Disconnect()
}

func toCANFrame(f Frame) can.Frame {
	id := f.ID & effMask
	if f.Extended {
		id |= effFlag
	} else {
		id = f.ID & sffMask
	}
	var frm can.Frame
	frm.ID = id
	frm.Length = f.Length
	copy(frm.Data[:], f.Data[:])
	return frm
}

func fromCANFrame(frm can.Frame) Frame {
	extended := frm.ID&effFlag != 0
	var id uint32
	if extended {
		id = frm.ID & effMask
	} else {
		id = frm.ID & sffMask
	}
	var f Frame
	f.ID = id
	f.Extended = extended
	f.Length = frm.Length
	copy(f.Data[:], frm.Data[:])
	return f
}
