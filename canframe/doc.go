// Package canframe implements the wire-level CAN bootloader protocol: command
// codes, the fixed 8-byte payload layout, and the length-and-address
// fragment byte packing shared by every frame direction.
//
// # Payload Layout
//
// Every frame, in both directions, carries exactly 8 data bytes:
//
//	byte 0-1: MCU-ID (big-endian)
//	byte 2:   command code
//	byte 3:   fragment byte — bits 7..5 = byte count (0-4), bits 4..0 = low 5 bits of address
//	byte 4-7: command-specific payload (address, signature, or flash data)
//
// Address fields, when present, are big-endian across bytes 4..7.
//
// Encode/Decode are pure and infallible for well-formed input; Decode
// rejects payloads that are not exactly 8 bytes.
package canframe
