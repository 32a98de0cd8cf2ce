//go:build windows

package transport

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/google/gousb"
)

// USB-CAN adapter identity and endpoint numbers. Adapters implementing
// this bulk-transfer framing are typically CDC-style vendor devices
// exposing one bulk IN and one bulk OUT endpoint; VID/PID are the ones
// used by the reference adapter this transport was written against.
const (
	usbCANVendorID  = gousb.ID(0x1209)
	usbCANProductID = gousb.ID(0xCA17)
	usbCANEndpoint  = 1
)

// recordSize is the fixed length of one adapter record: a 4-byte
// little-endian CAN ID, a flags byte (bit 0 extended, bit 1 RTR), a
// length byte, and 8 payload bytes — the same fixed-record-over-bulk-
// transfer framing unifying/usb.go uses for HID++ reports, adapted to
// carry a CAN frame instead of an HID++ one.
const recordSize = 4 + 1 + 1 + 8

// USBCANTransport talks to a USB-CAN adapter through
// github.com/google/gousb, used on platforms without native SocketCAN
// support.
type USBCANTransport struct {
	mu      sync.Mutex
	ctx     *gousb.Context
	dev     *gousb.Device
	done    func()
	in      *gousb.InEndpoint
	out     *gousb.OutEndpoint
	onFrame func(Frame)
	stop    chan struct{}
}

// NewUSBCAN returns an unopened USB-CAN transport.
func NewUSBCAN() *USBCANTransport {
	return &USBCANTransport{}
}

func (t *USBCANTransport) OnFrame(f func(Frame)) {
	t.mu.Lock()
	t.onFrame = f
	t.mu.Unlock()
}

func (t *USBCANTransport) Open(ctx context.Context) error {
	usbCtx := gousb.NewContext()
	dev, err := usbCtx.OpenDeviceWithVIDPID(usbCANVendorID, usbCANProductID)
	if err != nil {
		usbCtx.Close()
		return fmt.Errorf("transport: open USB-CAN adapter: %w", err)
	}
	if dev == nil {
		usbCtx.Close()
		return fmt.Errorf("transport: no USB-CAN adapter found (vid=%s pid=%s)", usbCANVendorID, usbCANProductID)
	}

	intf, done, err := dev.DefaultInterface()
	if err != nil {
		dev.Close()
		usbCtx.Close()
		return fmt.Errorf("transport: claim USB-CAN interface: %w", err)
	}
	in, err := intf.InEndpoint(usbCANEndpoint)
	if err != nil {
		done()
		dev.Close()
		usbCtx.Close()
		return fmt.Errorf("transport: open USB-CAN in endpoint: %w", err)
	}
	out, err := intf.OutEndpoint(usbCANEndpoint)
	if err != nil {
		done()
		dev.Close()
		usbCtx.Close()
		return fmt.Errorf("transport: open USB-CAN out endpoint: %w", err)
	}

	t.mu.Lock()
	t.ctx, t.dev, t.done, t.in, t.out = usbCtx, dev, done, in, out
	t.stop = make(chan struct{})
	t.mu.Unlock()

	go t.readLoop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

func (t *USBCANTransport) readLoop() {
	buf := make([]byte, recordSize)
	for {
		select {
		case <-t.stop:
			return
		default:
		}
		n, err := t.in.Read(buf)
		if err != nil || n != recordSize {
			continue
		}
		t.mu.Lock()
		cb := t.onFrame
		t.mu.Unlock()
		if cb != nil {
			cb(decodeRecord(buf))
		}
	}
}

func (t *USBCANTransport) Send(f Frame) error {
	t.mu.Lock()
	out := t.out
	t.mu.Unlock()
	if out == nil {
		return fmt.Errorf("transport: USB-CAN adapter not open")
	}
	buf := encodeRecord(f)
	_, err := out.Write(buf)
	return err
}

func (t *USBCANTransport) Close() error {
	t.mu.Lock()
	stop, done, dev, ctx := t.stop, t.done, t.dev, t.ctx
	t.stop, t.done, t.dev, t.ctx = nil, nil, nil, nil
	t.mu.Unlock()

	if stop != nil {
		close(stop)
	}
	if done != nil {
		done()
	}
	if dev != nil {
		dev.Close()
	}
	if ctx != nil {
		return ctx.Close()
	}
	return nil
}

func encodeRecord(f Frame) []byte {
	buf := make([]byte, recordSize)
	binary.LittleEndian.PutUint32(buf[0:4], f.ID)
	var flags byte
	if f.Extended {
		flags |= 0x01
	}
	if f.RTR {
		flags |= 0x02
	}
	buf[4] = flags
	buf[5] = f.Length
	copy(buf[6:6+8], f.Data[:])
	return buf
}

func decodeRecord(buf []byte) Frame {
	var f Frame
	f.ID = binary.LittleEndian.Uint32(buf[0:4])
	f.Extended = buf[4]&0x01 != 0
	f.RTR = buf[4]&0x02 != 0
	f.Length = buf[5]
	copy(f.Data[:], buf[6:6+8])
	return f
}
