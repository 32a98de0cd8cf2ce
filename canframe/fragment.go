package canframe

// PackFragment combines a data byte count (0-4) and the low 5 bits of a
// flash address into the fragment byte carried in payload byte 3.
//
// The caller is responsible for keeping byteCount within 0..4; values
// outside that range are masked to 3 bits, matching the wire field width.
func PackFragment(byteCount int, address uint32) byte {
	return byte(byteCount&0x07)<<5 | byte(address&0x1F)
}

// UnpackFragment splits a fragment byte into its byte count (bits 7..5) and
// low-5-bits address fragment (bits 4..0).
func UnpackFragment(fragment byte) (byteCount int, addrLow5 byte) {
	return int(fragment >> 5), fragment & 0x1F
}
