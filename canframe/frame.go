package canframe

import (
	"encoding/binary"
	"fmt"
)

// PayloadSize is the fixed data length of every frame in the protocol.
const PayloadSize = 8

// Decoded holds the parsed fields of an 8-byte payload.
type Decoded struct {
	MCUID    uint16
	Command  byte
	ByteCount int
	AddrLow5 byte
	Payload  [4]byte
}

// Encode builds an 8-byte payload for the given command and MCU-ID.
//
// addr is the flash address (or address sentinel); it is written
// big-endian into bytes 4..7 when addrValid is true. data carries up to
// 4 command-specific bytes that are copied into bytes 4..7 instead of an
// address when addrValid is false. length is the byte count packed into
// the fragment byte's upper 3 bits (0 for commands that don't carry a
// counted data chunk).
func Encode(command byte, mcuID uint16, length int, addr uint32, addrValid bool, data []byte) [PayloadSize]byte {
	var p [PayloadSize]byte
	binary.BigEndian.PutUint16(p[0:2], mcuID)
	p[2] = command
	p[3] = PackFragment(length, addr)

	if addrValid {
		binary.BigEndian.PutUint32(p[4:8], addr)
	} else {
		copy(p[4:8], data)
	}
	return p
}

// EncodeAddress builds a frame whose bytes 4..7 carry a 32-bit big-endian
// flash address and whose fragment byte encodes that address's low 5 bits
// with a zero byte count. Used for FLASH_SET_ADDRESS and FLASH_READ; the
// frames without an address (PING, FLASH_ERASE, FLASH_DONE,
// FLASH_DONE_VERIFY, START_APP) use EncodeBare, and FLASH_INIT uses
// EncodeSignature.
func EncodeAddress(command byte, mcuID uint16, addr uint32) [PayloadSize]byte {
	return Encode(command, mcuID, 0, addr, true, nil)
}

// EncodeData builds a FLASH_DATA-shaped frame: up to 4 data bytes in
// bytes 4..7, fragment byte encoding len(data) and the low 5 bits of
// currentAddress.
func EncodeData(command byte, mcuID uint16, currentAddress uint32, data []byte) [PayloadSize]byte {
	var buf [4]byte
	n := copy(buf[:], data)
	return Encode(command, mcuID, n, currentAddress, false, buf[:n])
}

// EncodeBare builds a frame with bytes 4..7 zeroed and fragment byte zero —
// used for PING, FLASH_INIT's signature-only callers excepted, FLASH_ERASE,
// FLASH_DONE, FLASH_DONE_VERIFY, and START_APP.
func EncodeBare(command byte, mcuID uint16) [PayloadSize]byte {
	return Encode(command, mcuID, 0, 0, false, nil)
}

// EncodeSignature builds the FLASH_INIT frame, carrying the 3-byte device
// signature in bytes 4..6 (byte 7 left zero).
func EncodeSignature(command byte, mcuID uint16, signature [3]byte) [PayloadSize]byte {
	var data [4]byte
	copy(data[:3], signature[:])
	return Encode(command, mcuID, 0, 0, false, data[:])
}

// Decode parses an 8-byte payload. It returns an error if data is not
// exactly PayloadSize bytes long; frames of any other length are ignored
// by the core per the wire contract.
func Decode(data []byte) (Decoded, error) {
	if len(data) != PayloadSize {
		return Decoded{}, fmt.Errorf("canframe: payload has %d bytes, want %d", len(data), PayloadSize)
	}
	byteCount, addrLow5 := UnpackFragment(data[3])
	var d Decoded
	d.MCUID = binary.BigEndian.Uint16(data[0:2])
	d.Command = data[2]
	d.ByteCount = byteCount
	d.AddrLow5 = addrLow5
	copy(d.Payload[:], data[4:8])
	return d, nil
}

// DecodeAddress reinterprets bytes 4..7 of a decoded payload as a 32-bit
// big-endian address. Valid for FLASH_READY, FLASH_ADDRESS_ERROR, and
// FLASH_READ_ADDRESS_ERROR payloads.
func (d Decoded) DecodeAddress() uint32 {
	return binary.BigEndian.Uint32(d.Payload[:])
}

// DecodeSignature reinterprets bytes 4..6 of a decoded BOOTLOADER_START
// payload as the device signature, with byte 7 as the protocol version.
func (d Decoded) DecodeSignature() (signature [3]byte, version byte) {
	copy(signature[:], d.Payload[:3])
	version = d.Payload[3]
	return signature, version
}
