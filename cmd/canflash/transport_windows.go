//go:build windows

package main

import "github.com/canflash/canflash/transport"

// iface is unused on Windows: the USB-CAN adapter is located by VID/PID,
// not by an interface name.
func newTransport(iface string) transport.Transport {
	return transport.NewUSBCAN()
}
