package device

import "strings"

// Info is a device's identity as seen by the bootloader protocol.
type Info struct {
	// Signature is the 3-byte signature reported in BOOTLOADER_START.
	Signature [3]byte

	// FlashSize is the total flash size in bytes, including the
	// bootloader region.
	FlashSize uint32
}

type entry struct {
	aliases   []string
	signature [3]byte
	flashSize uint32
}

// catalog lists the ATmega parts reachable by an 8-bit CAN bootloader of
// this shape, each under its short, medium, and long aliases.
var catalog = []entry{
	{
		aliases:   []string{"m328p", "mega328p", "atmega328p"},
		signature: [3]byte{0x1E, 0x95, 0x0F},
		flashSize: 32 * 1024,
	},
	{
		aliases:   []string{"m328pb", "mega328pb", "atmega328pb"},
		signature: [3]byte{0x1E, 0x95, 0x16},
		flashSize: 32 * 1024,
	},
	{
		aliases:   []string{"m32u4", "mega32u4", "atmega32u4"},
		signature: [3]byte{0x1E, 0x95, 0x87},
		flashSize: 32 * 1024,
	},
	{
		aliases:   []string{"m2560", "mega2560", "atmega2560"},
		signature: [3]byte{0x1E, 0x98, 0x01},
		flashSize: 256 * 1024,
	},
	{
		aliases:   []string{"m644", "mega644", "atmega644"},
		signature: [3]byte{0x1E, 0x96, 0x09},
		flashSize: 64 * 1024,
	},
	{
		aliases:   []string{"m644p", "mega644p", "atmega644p"},
		signature: [3]byte{0x1E, 0x96, 0x0A},
		flashSize: 64 * 1024,
	},
	{
		aliases:   []string{"m1284p", "mega1284p", "atmega1284p"},
		signature: [3]byte{0x1E, 0x97, 0x05},
		flashSize: 128 * 1024,
	},
}

var byAlias = buildIndex(catalog)

func buildIndex(entries []entry) map[string]Info {
	idx := make(map[string]Info)
	for _, e := range entries {
		info := Info{Signature: e.signature, FlashSize: e.flashSize}
		for _, alias := range e.aliases {
			idx[strings.ToLower(alias)] = info
		}
	}
	return idx
}

// Lookup resolves a part-number alias, case-insensitively, to its device
// signature and flash size. ok is false for an unknown alias, in which
// case Info is the zero value (signature {0,0,0}, flash size 0).
func Lookup(partno string) (info Info, ok bool) {
	info, ok = byAlias[strings.ToLower(partno)]
	return info, ok
}
