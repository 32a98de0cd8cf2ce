package session

import (
	"time"

	"github.com/canflash/canflash/canframe"
)

// pinger periodically sends a keep-alive PING frame while the session is
// in Init. It is started once, on entry to Init, and stopped when
// BOOTLOADER_START is accepted and again on termination; Stop is
// idempotent, so the repeated calls are harmless.
type pinger struct {
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
}

// startPinger launches a ticker that calls send on every tick until
// Stop is called. A zero interval disables the pinger (no goroutine is
// started and Stop is always safe to call).
func startPinger(interval time.Duration, send func()) *pinger {
	p := &pinger{interval: interval}
	if interval <= 0 {
		return p
	}
	p.stop = make(chan struct{})
	p.done = make(chan struct{})
	go func() {
		defer close(p.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				send()
			case <-p.stop:
				return
			}
		}
	}()
	return p
}

// Stop cancels the pinger's ticker goroutine, if one is running, and
// waits for it to exit so no ping can race a state transition out of
// Init.
func (p *pinger) Stop() {
	if p == nil || p.stop == nil {
		return
	}
	select {
	case <-p.stop:
		// already stopped
	default:
		close(p.stop)
	}
	<-p.done
}

// pingFrame builds the PING payload: command 0x00, zeroed bytes 4..7,
// sent on the remote->mcu CAN-ID.
func pingFrame(mcuID uint16) [canframe.PayloadSize]byte {
	return canframe.EncodeBare(canframe.CmdPing, mcuID)
}
