// Package transport defines the CAN transport contract the session
// state machine is driven through, and the platform-specific
// implementations that satisfy it: raw SocketCAN on Linux, a USB-CAN
// adapter on Windows.
//
// A Transport is opened once, delivers every received frame to the
// callback registered with OnFrame (which must be set before Open is
// called), and is closed once. Frame delivery and Send may happen on
// different goroutines; callers that bridge a Transport into a
// session.Session are expected to fan received frames into a single
// channel, matching the state machine's single-consumer requirement.
package transport
