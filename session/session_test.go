package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/canflash/canflash/canframe"
	"github.com/canflash/canflash/image"
)

var testSignature = [3]byte{0x1E, 0x95, 0x0F}

// fakeTarget stands in for a CAN transport wired straight back to a
// scripted bootloader: every Send is decoded and handed to respond,
// whose replies are queued onto frames for the session's next Run
// iteration to pick up. Safe for the pinger's goroutine and the
// session's own goroutine to call concurrently.
type fakeTarget struct {
	frames  chan Frame
	respond func(d canframe.Decoded) [][8]byte

	mu   sync.Mutex
	sent []byte
}

func (f *fakeTarget) Send(fr Frame) error {
	d, err := canframe.Decode(fr.Data[:])
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.sent = append(f.sent, d.Command)
	f.mu.Unlock()

	for _, payload := range f.respond(d) {
		f.frames <- Frame{ID: DefaultCANIDRemote, Extended: true, Length: canframe.PayloadSize, Data: payload}
	}
	return nil
}

func (f *fakeTarget) commandCount(cmd byte) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.sent {
		if c == cmd {
			n++
		}
	}
	return n
}

func newFakeTarget(respond func(d canframe.Decoded) [][8]byte) *fakeTarget {
	return &fakeTarget{frames: make(chan Frame, 16), respond: respond}
}

func inbound(payload [8]byte) Frame {
	return Frame{ID: DefaultCANIDRemote, Extended: true, Length: canframe.PayloadSize, Data: payload}
}

func bootloaderStart(sig [3]byte, version byte) [8]byte {
	var data [4]byte
	copy(data[:3], sig[:])
	data[3] = version
	return canframe.Encode(canframe.CmdBootloaderStart, 0, 0, 0, false, data[:])
}

// runToCompletion seeds the target's frame channel and runs the session
// to Done, returning its terminal error.
func runToCompletion(t *testing.T, s *Session, target *fakeTarget, seed Frame) error {
	t.Helper()
	target.frames <- seed
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return s.Run(ctx, target.frames)
}

func flatImage(start uint32, data []byte) *image.Image {
	b := image.NewBuilder()
	for i, v := range data {
		b.Set(start+uint32(i), v)
	}
	return b.Build()
}

// S1: a small single-block image flashes cleanly, including a resync
// when the target's initial cursor doesn't match the image's start
// address, followed by a clean verify pass.
func TestSessionHappyFlash(t *testing.T) {
	img := flatImage(0x10, []byte{0xDE, 0xAD, 0xBE, 0xEF})

	target := newFakeTarget(func(d canframe.Decoded) [][8]byte {
		switch d.Command {
		case canframe.CmdFlashInit:
			return [][8]byte{canframe.Encode(canframe.CmdFlashReady, 0, 0, 0x00, true, nil)}
		case canframe.CmdFlashSetAddress:
			return [][8]byte{canframe.Encode(canframe.CmdFlashReady, 0, 0, 0x10, true, nil)}
		case canframe.CmdFlashData:
			return [][8]byte{canframe.Encode(canframe.CmdFlashReady, 0, 4, 0x14, true, nil)}
		case canframe.CmdFlashRead:
			return [][8]byte{canframe.EncodeData(canframe.CmdFlashReadData, 0, 0x10, []byte{0xDE, 0xAD, 0xBE, 0xEF})}
		default:
			return nil
		}
	})

	s := New(target, img, WithSignature(testSignature))
	err := runToCompletion(t, s, target, inbound(bootloaderStart(testSignature, canframe.ProtocolVersion)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.State() != Done {
		t.Fatalf("state = %v, want Done", s.State())
	}
	if target.commandCount(canframe.CmdStartApp) != 1 {
		t.Fatalf("expected exactly one START_APP, sent %v", target.sent)
	}
}

// S2: a byte mismatch during the verify pass is fatal, and the session
// still emits a courtesy START_APP.
func TestSessionVerifyMismatch(t *testing.T) {
	img := flatImage(0x10, []byte{0xDE, 0xAD, 0xBE, 0xEF})

	target := newFakeTarget(func(d canframe.Decoded) [][8]byte {
		switch d.Command {
		case canframe.CmdFlashInit:
			return [][8]byte{canframe.Encode(canframe.CmdFlashReady, 0, 0, 0x10, true, nil)}
		case canframe.CmdFlashData:
			return [][8]byte{canframe.Encode(canframe.CmdFlashReady, 0, 4, 0x14, true, nil)}
		case canframe.CmdFlashRead:
			return [][8]byte{canframe.EncodeData(canframe.CmdFlashReadData, 0, 0x10, []byte{0xDE, 0xAD, 0xBE, 0x00})}
		default:
			return nil
		}
	})

	s := New(target, img, WithSignature(testSignature))
	err := runToCompletion(t, s, target, inbound(bootloaderStart(testSignature, canframe.ProtocolVersion)))

	var mismatch *VerifyMismatch
	if !errors.As(err, &mismatch) {
		t.Fatalf("err = %v, want *VerifyMismatch", err)
	}
	if mismatch.Address != 0x13 || mismatch.Expected != 0xEF || mismatch.Actual != 0x00 {
		t.Fatalf("unexpected mismatch details: %+v", mismatch)
	}
	if target.commandCount(canframe.CmdStartApp) != 1 {
		t.Fatalf("expected a courtesy START_APP even on failure, sent %v", target.sent)
	}
}

// S3: two non-adjacent blocks force a FLASH_SET_ADDRESS resync between
// them, exercising the write-step address-jump path and a two-block
// verify pass.
func TestSessionAddressJump(t *testing.T) {
	b := image.NewBuilder()
	for i, v := range []byte{0x01, 0x02, 0x03, 0x04} {
		b.Set(0x00+uint32(i), v)
	}
	for i, v := range []byte{0x05, 0x06} {
		b.Set(0x20+uint32(i), v)
	}
	img := b.Build()

	var cursor uint32
	var setAddresses []uint32
	target := newFakeTarget(func(d canframe.Decoded) [][8]byte {
		switch d.Command {
		case canframe.CmdFlashInit:
			cursor = 0
			return [][8]byte{canframe.Encode(canframe.CmdFlashReady, 0, 0, cursor, true, nil)}
		case canframe.CmdFlashSetAddress:
			cursor = d.DecodeAddress()
			setAddresses = append(setAddresses, cursor)
			return [][8]byte{canframe.Encode(canframe.CmdFlashReady, 0, 0, cursor, true, nil)}
		case canframe.CmdFlashData:
			cursor += uint32(d.ByteCount)
			return [][8]byte{canframe.Encode(canframe.CmdFlashReady, 0, d.ByteCount, cursor, true, nil)}
		case canframe.CmdFlashRead:
			addr := d.DecodeAddress()
			var data []byte
			switch addr {
			case 0x00:
				data = []byte{0x01, 0x02, 0x03, 0x04}
			case 0x20:
				data = []byte{0x05, 0x06}
			}
			return [][8]byte{canframe.EncodeData(canframe.CmdFlashReadData, 0, addr, data)}
		default:
			return nil
		}
	})

	s := New(target, img, WithSignature(testSignature))
	err := runToCompletion(t, s, target, inbound(bootloaderStart(testSignature, canframe.ProtocolVersion)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(setAddresses) != 1 || setAddresses[0] != 0x20 {
		t.Fatalf("setAddresses = %v, want exactly [0x20]", setAddresses)
	}
}

// S4: a read-mode session probes FLASHEND_BL with the address sentinel,
// derives program/bootloader sizes, and finalizes its buffer when the
// target reports a read address error.
func TestSessionReadProbe(t *testing.T) {
	target := newFakeTarget(func(d canframe.Decoded) [][8]byte {
		switch d.Command {
		case canframe.CmdFlashInit:
			return [][8]byte{canframe.Encode(canframe.CmdFlashReady, 0, 0, 0, true, nil)}
		case canframe.CmdFlashSetAddress:
			if d.DecodeAddress() != canframe.AddressProbe {
				t.Fatalf("expected address probe, got %#x", d.DecodeAddress())
			}
			return [][8]byte{canframe.EncodeAddress(canframe.CmdFlashAddressError, 0, 0x77FF)}
		case canframe.CmdFlashRead:
			if d.DecodeAddress() != 0 {
				return [][8]byte{canframe.EncodeAddress(canframe.CmdFlashReadAddressError, 0, d.DecodeAddress())}
			}
			return [][8]byte{canframe.EncodeData(canframe.CmdFlashReadData, 0, 0, []byte{0xAA, 0xBB, 0xCC, 0xDD})}
		default:
			return nil
		}
	})

	s := New(target, nil, WithSignature(testSignature), WithMode(ModeRead), WithFlashSize(32768))
	err := runToCompletion(t, s, target, inbound(bootloaderStart(testSignature, canframe.ProtocolVersion)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.programSize != 0x7800 || s.bootloaderSize != 32768-0x7800 {
		t.Fatalf("programSize=%#x bootloaderSize=%#x, want 0x7800 / %#x", s.programSize, s.bootloaderSize, 32768-0x7800)
	}
	result := s.Image()
	if result == nil {
		t.Fatal("expected a non-nil result image")
	}
	if got, ok := result.At(0x03); !ok || got != 0xDD {
		t.Fatalf("result.At(0x03) = %#x, %v; want 0xDD, true", got, ok)
	}
}

// S5: a protocol version mismatch without the force option aborts the
// session before any flash traffic is sent.
func TestSessionVersionMismatchWithoutForce(t *testing.T) {
	target := newFakeTarget(func(d canframe.Decoded) [][8]byte { return nil })

	s := New(target, flatImage(0, []byte{0x00}), WithSignature(testSignature))
	err := runToCompletion(t, s, target, inbound(bootloaderStart(testSignature, canframe.ProtocolVersion+1)))

	var mismatch *ProtocolMismatch
	if !errors.As(err, &mismatch) {
		t.Fatalf("err = %v, want *ProtocolMismatch", err)
	}
	if target.commandCount(canframe.CmdFlashInit) != 0 {
		t.Fatalf("expected no FLASH_INIT to be sent, sent %v", target.sent)
	}
}

// S6: the keep-alive pinger fires repeatedly while the session is idle
// in Init, and stops as soon as BOOTLOADER_START is accepted.
func TestSessionPingCadence(t *testing.T) {
	target := newFakeTarget(func(d canframe.Decoded) [][8]byte {
		if d.Command == canframe.CmdFlashInit {
			return [][8]byte{canframe.Encode(canframe.CmdFlashReady, 0, 0, 0, true, nil)}
		}
		return nil
	})

	img := flatImage(0, []byte{0x01, 0x02, 0x03, 0x04})
	s := New(target, img, WithSignature(testSignature), WithPing(5*time.Millisecond), WithVerify(false))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx, target.frames)
		close(done)
	}()

	time.Sleep(40 * time.Millisecond)
	if n := target.commandCount(canframe.CmdPing); n < 2 {
		t.Fatalf("expected multiple pings while idle in Init, got %d", n)
	}

	target.frames <- inbound(bootloaderStart(testSignature, canframe.ProtocolVersion))
	time.Sleep(20 * time.Millisecond)
	pingsAtHandshake := target.commandCount(canframe.CmdPing)

	time.Sleep(30 * time.Millisecond)
	if target.commandCount(canframe.CmdPing) != pingsAtHandshake {
		t.Fatalf("pinger kept firing after leaving Init: %d -> %d", pingsAtHandshake, target.commandCount(canframe.CmdPing))
	}

	cancel()
	<-done
}
