package utils

import "testing"

func TestAddr(t *testing.T) {
	tests := []struct {
		in   uint16
		want string
	}{
		{in: 0x76, want: "0x76"},
		{in: 0x77, want: "0x77"},
		{in: 0x0A, want: "0x0A"},
	}
	for _, tt := range tests {
		if got := Addr(tt.in); got != tt.want {
			t.Errorf("Addr(%d) = %q; want %q", tt.in, got, tt.want)
		}
	}
}

func TestHex8(t *testing.T) {
	tests := []struct {
		in   uint32
		want string
	}{
		{in: 0, want: "00000000"},
		{in: 0xFFFF, want: "0000FFFF"},
		{in: 0x0600F01F, want: "0600F01F"},
		{in: 0xFFFFFFFF, want: "FFFFFFFF"},
	}
	for _, tt := range tests {
		if got := Hex8(tt.in); got != tt.want {
			t.Errorf("Hex8(%#x) = %q; want %q", tt.in, got, tt.want)
		}
	}
}
