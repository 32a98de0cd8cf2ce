// Package session implements the bootloader dialogue engine: the
// deterministic state machine that drives a flashing or read-back
// session against a single target microcontroller over a CAN
// transport.
//
// Session is event-driven and single-threaded: Run consumes inbound
// frames from a channel and context cancellation, and processes exactly
// one event to completion — including any outbound sends — before
// accepting the next. Keep-alive pings are sent from the pinger's own
// goroutine and touch no session state. A caller feeding frames from a
// concurrent transport must deliver them through a single-consumer
// channel (fan the transport's callback into a channel; the state
// machine itself is not safe for concurrent use).
//
// # Basic usage
//
//	sess := session.New(transport, img,
//	    session.WithMCUID(0x0042),
//	    session.WithSignature(sig),
//	    session.WithFlashSize(32*1024),
//	    session.WithVerify(true),
//	    session.WithLogger(logger),
//	)
//
//	frames := make(chan session.Frame, 16)
//	t.OnFrame(func(f session.Frame) { frames <- f })
//
//	err := sess.Run(ctx, frames)
package session
