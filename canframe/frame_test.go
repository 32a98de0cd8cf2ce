package canframe

import "testing"

func TestEncodeDecodeAddressRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		command byte
		mcuID   uint16
		addr    uint32
	}{
		{"zero address", CmdFlashSetAddress, 0x0042, 0x00000000},
		{"probe sentinel", CmdFlashSetAddress, 0x0042, AddressProbe},
		{"mid address", CmdFlashRead, 0xBEEF, 0x00001234},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := EncodeAddress(tt.command, tt.mcuID, tt.addr)
			decoded, err := Decode(payload[:])
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if decoded.MCUID != tt.mcuID {
				t.Errorf("MCUID = %#04x, want %#04x", decoded.MCUID, tt.mcuID)
			}
			if decoded.Command != tt.command {
				t.Errorf("Command = %#02x, want %#02x", decoded.Command, tt.command)
			}
			if got := decoded.DecodeAddress(); got != tt.addr {
				t.Errorf("DecodeAddress() = %#08x, want %#08x", got, tt.addr)
			}
			wantLow5 := byte(tt.addr & 0x1F)
			if decoded.AddrLow5 != wantLow5 {
				t.Errorf("AddrLow5 = %#02x, want %#02x", decoded.AddrLow5, wantLow5)
			}
		})
	}
}

// TestEncodeDataDecodeRoundTrip checks, for every length in 0..4, that
// decoding an EncodeData frame recovers the byte count, the data bytes
// and the low 5 address bits.
func TestEncodeDataDecodeRoundTrip(t *testing.T) {
	data4 := []byte{0xAA, 0xBB, 0xCC, 0xDD}
	for length := 0; length <= 4; length++ {
		payload := EncodeData(CmdFlashData, 0x1234, 0x00000005, data4[:length])
		decoded, err := Decode(payload[:])
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if decoded.ByteCount != length {
			t.Fatalf("length %d: ByteCount = %d", length, decoded.ByteCount)
		}
		for i := 0; i < length; i++ {
			if decoded.Payload[i] != data4[i] {
				t.Fatalf("length %d: Payload[%d] = %#02x, want %#02x", length, i, decoded.Payload[i], data4[i])
			}
		}
		if decoded.AddrLow5 != 0x05 {
			t.Fatalf("length %d: AddrLow5 = %#02x, want 0x05", length, decoded.AddrLow5)
		}
	}
}

func TestDecodeRejectsWrongLength(t *testing.T) {
	tests := [][]byte{
		nil,
		{},
		{0x01, 0x02, 0x03},
		make([]byte, 9),
	}
	for _, data := range tests {
		if _, err := Decode(data); err == nil {
			t.Errorf("Decode(%d bytes) = nil error, want error", len(data))
		}
	}
}

func TestEncodeSignature(t *testing.T) {
	sig := [3]byte{0x1E, 0x95, 0x0F}
	payload := EncodeSignature(CmdFlashInit, 0x0042, sig)
	decoded, err := Decode(payload[:])
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	gotSig, version := decoded.DecodeSignature()
	if gotSig != sig {
		t.Errorf("signature = %v, want %v", gotSig, sig)
	}
	_ = version
}

func TestEncodeBare(t *testing.T) {
	payload := EncodeBare(CmdPing, 0x0042)
	decoded, err := Decode(payload[:])
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if decoded.Command != CmdPing {
		t.Errorf("Command = %#02x, want PING", decoded.Command)
	}
	if decoded.Payload != [4]byte{0, 0, 0, 0} {
		t.Errorf("Payload = %v, want zeroed", decoded.Payload)
	}
	if decoded.MCUID != 0x0042 {
		t.Errorf("MCUID = %#04x, want 0x0042", decoded.MCUID)
	}
}
