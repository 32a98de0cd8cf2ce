package session

import (
	"context"
	"fmt"
	"time"

	"github.com/canflash/canflash/canframe"
	"github.com/canflash/canflash/image"
)

// Session drives one bootloader dialogue against one target. It is not
// safe for concurrent use; Run owns it from a single goroutine for its
// entire lifetime.
type Session struct {
	cfg       Config
	transport Transport
	img       *image.Image
	plan      *image.TransferPlan

	state State
	mode  Mode

	// Reading-state cursor: the next address the host expects to read,
	// valid in both the verify and whole-flash-read sub-modes.
	currentAddress uint32
	verifying      bool

	// remoteAddress is the target's last reported write cursor,
	// compared against the Transfer Plan's next chunk to decide
	// whether a FLASH_SET_ADDRESS is needed before the next FLASH_DATA.
	remoteAddress uint32

	flashStartTime time.Time
	programSize    uint32
	bootloaderSize uint32
	readUntil      uint32

	pinger    *pinger
	err       error
	readImage *image.Image
}

// New constructs a Session over transport and img, in Init state.
// Identity (MCUID, Signature, FlashSize) and behavior (mode, erase,
// verify, force, ping interval, logging, progress) are set with Option
// values; see WithMCUID and friends.
func New(transport Transport, img *image.Image, opts ...Option) *Session {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Session{
		cfg:       cfg,
		transport: transport,
		img:       img,
		plan:      image.NewTransferPlan(img),
		state:     Init,
		mode:      cfg.mode,
	}
}

// State returns the session's current state.
func (s *Session) State() State { return s.state }

// Err returns the terminal error, if the session ended with one. Valid
// once State() == Done.
func (s *Session) Err() error { return s.err }

// Image returns the image accumulated by a read-mode session once it has
// reached Done. Returns nil in write mode or before termination.
func (s *Session) Image() *image.Image {
	if s.mode != ModeRead || s.state != Done {
		return nil
	}
	return s.readImage
}

// Run is the session's event loop. It consumes inbound frames from
// frames and ctx cancellation, processing exactly one event to
// completion before accepting the next, until the state machine
// reaches Done. Cancellation and a closed frames channel end the
// session with an error after a courtesy START_APP. The call to Run is itself the "external start
// signal" of spec §5: the pinger starts immediately and the first
// inbound BOOTLOADER_START frame drives the rest of the dialogue.
func (s *Session) Run(ctx context.Context, frames <-chan Frame) error {
	s.pinger = startPinger(s.cfg.pingEvery, s.sendPing)
	if s.cfg.pingEvery > 0 {
		s.cfg.logger.Debug("keep-alive pinger enabled", "interval", s.cfg.pingEvery)
	}
	defer s.pinger.Stop()

	for s.state != Done {
		select {
		case <-ctx.Done():
			s.terminate(ctx.Err())
			return s.err
		case f, ok := <-frames:
			if !ok {
				s.terminate(fmt.Errorf("session: frame channel closed before termination"))
				return s.err
			}
			s.handleFrame(f)
		}
	}
	return s.err
}

// sendPing is the pinger's send callback. It runs on the pinger's own
// goroutine, concurrently with the event loop above — safe because it
// touches no session state besides the immutable identity fields set at
// construction, and Init is the only state in which the pinger runs.
// A failed ping is logged, not fatal: a missed keep-alive does not by
// itself mean the link is down.
func (s *Session) sendPing() {
	if err := s.send(pingFrame(s.cfg.mcuID)); err != nil {
		s.cfg.logger.Error("ping send failed", "err", err)
	}
}

// accept applies the CAN-ID / length / MCU-ID filter of spec §4.4.
// Frames failing any check are silently dropped: state and cursors are
// left unchanged.
func (s *Session) accept(f Frame) (canframe.Decoded, bool) {
	if f.ID != s.cfg.canIDRemote {
		return canframe.Decoded{}, false
	}
	if f.Length != canframe.PayloadSize {
		return canframe.Decoded{}, false
	}
	d, err := canframe.Decode(f.Data[:])
	if err != nil {
		return canframe.Decoded{}, false
	}
	if d.MCUID != s.cfg.mcuID {
		return canframe.Decoded{}, false
	}
	return d, true
}

func (s *Session) handleFrame(f Frame) {
	d, ok := s.accept(f)
	if !ok {
		return
	}
	s.cfg.logger.Debug("recv", "command", canframe.CommandName(d.Command))

	switch s.state {
	case Init:
		s.handleInit(d)
	case Flashing:
		s.handleFlashing(d)
	case Reading:
		s.handleReading(d)
	}
}

// send builds an outbound frame on the configured host->mcu CAN-ID and
// hands it to the transport.
func (s *Session) send(payload [canframe.PayloadSize]byte) error {
	f := Frame{
		ID:       s.cfg.canIDMcu,
		Extended: s.cfg.extended,
		Length:   canframe.PayloadSize,
		Data:     payload,
	}
	return s.transport.Send(f)
}

// emit sends payload and, on failure, tears the session down as a
// TransportError. Returns false if the send failed (the caller should
// stop processing the current frame).
func (s *Session) emit(payload [canframe.PayloadSize]byte) bool {
	if err := s.send(payload); err != nil {
		s.terminate(&TransportError{Op: "send", Err: err})
		return false
	}
	return true
}

// terminate attempts a courtesy START_APP (best-effort; its own failure
// is not reported, since err already names the real cause) and then
// finishes the session with err.
func (s *Session) terminate(err error) {
	_ = s.send(canframe.EncodeBare(canframe.CmdStartApp, s.cfg.mcuID))
	s.finish(err)
}

// finish moves the session to Done with err (nil on success) without
// sending anything further — used when the target's own START_APP has
// already arrived.
func (s *Session) finish(err error) {
	s.pinger.Stop()
	s.state = Done
	s.err = err
	if s.cfg.progress != nil {
		s.cfg.progress(Progress{
			Phase:          "done",
			CurrentAddress: s.currentAddress,
			ElapsedTime:    time.Since(s.flashStartTime),
		})
	}
}

// --- Init state -------------------------------------------------------

func (s *Session) handleInit(d canframe.Decoded) {
	switch d.Command {
	case canframe.CmdBootloaderStart:
		s.onBootloaderStart(d)
	case canframe.CmdFlashReady:
		s.onFlashReadyInit(d)
	case canframe.CmdFlashAddressError:
		s.onAddressErrorInit(d)
	default:
		s.cfg.logger.Info("unexpected command in Init", "command", canframe.CommandName(d.Command))
	}
}

func (s *Session) onBootloaderStart(d canframe.Decoded) {
	signature, version := d.DecodeSignature()
	if signature != s.cfg.signature {
		s.cfg.logger.Error("signature mismatch",
			"got", fmt.Sprintf("%02X%02X%02X", signature[0], signature[1], signature[2]),
			"want", fmt.Sprintf("%02X%02X%02X", s.cfg.signature[0], s.cfg.signature[1], s.cfg.signature[2]))
		return
	}
	if version != canframe.ProtocolVersion {
		if !s.cfg.force {
			s.terminate(&ProtocolMismatch{
				Reason: fmt.Sprintf("target protocol version %#02x, want %#02x", version, canframe.ProtocolVersion),
			})
			return
		}
		s.cfg.logger.Info("protocol version mismatch, continuing due to force",
			"got", fmt.Sprintf("%#02x", version), "want", fmt.Sprintf("%#02x", canframe.ProtocolVersion))
	}

	s.pinger.Stop()
	s.flashStartTime = time.Now()
	s.emit(canframe.EncodeSignature(canframe.CmdFlashInit, s.cfg.mcuID, signature))
}

func (s *Session) onFlashReadyInit(d canframe.Decoded) {
	switch {
	case s.mode == ModeRead:
		s.emit(canframe.EncodeAddress(canframe.CmdFlashSetAddress, s.cfg.mcuID, canframe.AddressProbe))
	case s.cfg.erase:
		if s.emit(canframe.EncodeBare(canframe.CmdFlashErase, s.cfg.mcuID)) {
			s.cfg.erase = false
		}
	default:
		s.state = Flashing
		s.plan.BeginWrite()
		s.remoteAddress = d.DecodeAddress()
		s.writeStep()
	}
}

func (s *Session) onAddressErrorInit(d canframe.Decoded) {
	if s.mode != ModeRead {
		s.cfg.logger.Info("unexpected FLASH_ADDRESS_ERROR outside read mode")
		return
	}
	flashendBL := d.DecodeAddress()
	programSize := flashendBL + 1
	s.programSize = programSize
	s.bootloaderSize = s.cfg.flashSize - programSize

	readUntil := programSize
	if s.cfg.hasReadCap && s.cfg.readLimit < readUntil {
		readUntil = s.cfg.readLimit
	}
	s.readUntil = readUntil

	s.state = Reading
	s.verifying = false
	s.currentAddress = 0
	s.plan.BeginRead(0)
	s.emit(canframe.EncodeAddress(canframe.CmdFlashRead, s.cfg.mcuID, 0))
}

// --- Flashing state -----------------------------------------------------

func (s *Session) handleFlashing(d canframe.Decoded) {
	switch d.Command {
	case canframe.CmdFlashReady:
		s.plan.AdvanceWrite(d.ByteCount)
		s.remoteAddress = d.DecodeAddress()
		s.reportWriteProgress()
		s.writeStep()
	case canframe.CmdFlashDataError:
		s.cfg.logger.Error("flash data error, awaiting target recovery")
	case canframe.CmdFlashAddressError:
		s.cfg.logger.Error("flash address error, awaiting target recovery")
	case canframe.CmdStartApp:
		s.cfg.logger.Info("application started", "elapsed", time.Since(s.flashStartTime))
		s.finish(nil)
	default:
		s.cfg.logger.Info("unexpected command in Flashing", "command", canframe.CommandName(d.Command))
	}
}

// writeStep consults the Transfer Plan for the next chunk to send. If
// the chunk's address differs from the target's last reported cursor,
// it resyncs with FLASH_SET_ADDRESS and waits for the next FLASH_READY.
// Otherwise it emits the chunk as FLASH_DATA. Once the plan reports
// completion, it emits FLASH_DONE_VERIFY (then begins a verify read
// pass) or FLASH_DONE.
func (s *Session) writeStep() {
	chunk, done := s.plan.NextWriteChunk()
	if done {
		if s.cfg.verify {
			if !s.emit(canframe.EncodeBare(canframe.CmdFlashDoneVerify, s.cfg.mcuID)) {
				return
			}
			s.state = Reading
			s.verifying = true
			s.plan.BeginVerify()
			s.verifyStep()
			return
		}
		s.emit(canframe.EncodeBare(canframe.CmdFlashDone, s.cfg.mcuID))
		return
	}

	if chunk.Address != s.remoteAddress {
		s.emit(canframe.EncodeAddress(canframe.CmdFlashSetAddress, s.cfg.mcuID, chunk.Address))
		return
	}
	s.emit(canframe.EncodeData(canframe.CmdFlashData, s.cfg.mcuID, chunk.Address, chunk.Data))
}

func (s *Session) reportWriteProgress() {
	if s.cfg.progress == nil {
		return
	}
	s.cfg.progress(Progress{
		Phase:          "flashing",
		CurrentAddress: s.remoteAddress,
		BytesTotal:     s.plan.TotalWriteBytes(),
		BytesDone:      s.imageBytesBelow(s.remoteAddress),
		ElapsedTime:    time.Since(s.flashStartTime),
	})
}

// imageBytesBelow counts the image bytes at addresses below addr: the
// part of the image a write or verify pass has covered once it reaches addr.
func (s *Session) imageBytesBelow(addr uint32) int {
	n := 0
	for _, blk := range s.img.Blocks() {
		if addr >= blk.End() {
			n += len(blk.Data)
		} else if addr > blk.Start {
			n += int(addr - blk.Start)
		}
	}
	return n
}

// --- Reading state (verify sub-mode and whole-flash read sub-mode) ------

func (s *Session) handleReading(d canframe.Decoded) {
	switch d.Command {
	case canframe.CmdFlashDoneVerify:
		// Defensive re-entry: the eager transition already performed by
		// writeStep is authoritative. Re-running it is harmless (it
		// just resets the verify cursor and re-emits the first
		// FLASH_READ) and guards against a target that itself echoes
		// this bidirectional command.
		s.verifying = true
		s.plan.BeginVerify()
		s.verifyStep()
	case canframe.CmdFlashReadData:
		s.onReadData(d)
	case canframe.CmdFlashReadAddressError:
		s.onReadAddressError()
	case canframe.CmdStartApp:
		s.finish(nil)
	default:
		s.cfg.logger.Info("unexpected command in Reading", "command", canframe.CommandName(d.Command))
	}
}

func (s *Session) verifyStep() {
	addr, ok := s.plan.FirstVerifyAddress()
	if !ok {
		s.terminate(nil)
		return
	}
	s.currentAddress = addr
	s.emit(canframe.EncodeAddress(canframe.CmdFlashRead, s.cfg.mcuID, addr))
}

func (s *Session) onReadData(d canframe.Decoded) {
	wantLow5 := byte(s.currentAddress & 0x1F)
	if d.AddrLow5 != wantLow5 {
		s.terminate(&InvariantViolation{
			Reason:  "FLASH_READ_DATA address fragment does not match current_address",
			Address: s.currentAddress,
		})
		return
	}

	for i := 0; i < d.ByteCount; i++ {
		addr := s.currentAddress + uint32(i)
		got := d.Payload[i]
		if s.verifying {
			if expected, ok := s.plan.ExpectVerifyByte(addr); ok && expected != got {
				s.terminate(&VerifyMismatch{Address: addr, Expected: expected, Actual: got})
				return
			}
			continue
		}
		s.plan.AppendReadByte(got)
	}
	s.currentAddress += uint32(d.ByteCount)

	if s.verifying {
		s.reportReadProgress("verifying")
		if s.currentAddress >= s.plan.VerifyBlockEnd() {
			next, ok := s.plan.NextVerifyBlock()
			if !ok {
				s.terminate(nil)
				return
			}
			s.currentAddress = next
			s.emit(canframe.EncodeAddress(canframe.CmdFlashRead, s.cfg.mcuID, next))
		}
		return
	}

	s.reportReadProgress("reading")
	if s.currentAddress > s.readUntil {
		s.finishRead()
		s.terminate(nil)
		return
	}
	s.emit(canframe.EncodeAddress(canframe.CmdFlashRead, s.cfg.mcuID, s.currentAddress))
}

func (s *Session) onReadAddressError() {
	if s.verifying {
		s.terminate(&PeerError{Command: "FLASH_READ_ADDRESS_ERROR (during verify)", Address: s.currentAddress})
		return
	}
	s.finishRead()
	s.terminate(nil)
}

func (s *Session) finishRead() {
	s.readImage = s.plan.FinishRead()
}

func (s *Session) reportReadProgress(phase string) {
	if s.cfg.progress == nil {
		return
	}
	total := int(s.readUntil) + 1
	done := int(s.currentAddress)
	if s.verifying {
		total = s.plan.TotalWriteBytes()
		done = s.imageBytesBelow(s.currentAddress)
	}
	s.cfg.progress(Progress{
		Phase:          phase,
		CurrentAddress: s.currentAddress,
		BytesTotal:     total,
		BytesDone:      done,
		ElapsedTime:    time.Since(s.flashStartTime),
	})
}
