//go:build linux

package main

import "github.com/canflash/canflash/transport"

func newTransport(iface string) transport.Transport {
	return transport.NewSocketCAN(iface)
}
