package device

import "testing"

func TestLookupKnownAliases(t *testing.T) {
	tests := []struct {
		alias string
		want  [3]byte
	}{
		{"m328p", [3]byte{0x1E, 0x95, 0x0F}},
		{"mega328p", [3]byte{0x1E, 0x95, 0x0F}},
		{"atmega328p", [3]byte{0x1E, 0x95, 0x0F}},
		{"ATMEGA328P", [3]byte{0x1E, 0x95, 0x0F}},
		{"M2560", [3]byte{0x1E, 0x98, 0x01}},
	}

	for _, tt := range tests {
		t.Run(tt.alias, func(t *testing.T) {
			info, ok := Lookup(tt.alias)
			if !ok {
				t.Fatalf("Lookup(%q): ok = false, want true", tt.alias)
			}
			if info.Signature != tt.want {
				t.Errorf("Lookup(%q).Signature = %v, want %v", tt.alias, info.Signature, tt.want)
			}
			if info.FlashSize == 0 {
				t.Errorf("Lookup(%q).FlashSize = 0, want nonzero", tt.alias)
			}
		})
	}
}

func TestLookupUnknownAlias(t *testing.T) {
	info, ok := Lookup("not-a-real-part")
	if ok {
		t.Fatalf("Lookup(unknown): ok = true, want false")
	}
	if info.Signature != [3]byte{0, 0, 0} || info.FlashSize != 0 {
		t.Errorf("Lookup(unknown) = %+v, want zero value", info)
	}
}
