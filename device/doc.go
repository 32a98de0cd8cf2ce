// Package device is the static part-number alias catalog: a
// case-insensitive lookup from a short, medium, or long alias (e.g.
// "m328p", "mega328p", "atmega328p") to the target's 3-byte device
// signature and flash size in bytes.
//
// An unknown alias resolves to the zero signature and a flash size of
// zero. Lookup reports that in ok so a caller can treat it as a
// configuration error before starting a session; a session that is
// started anyway will still reject any BOOTLOADER_START, since the
// signature comparison against {0,0,0} can never succeed.
package device
