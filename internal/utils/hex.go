package utils

const hexd = "0123456789ABCDEF"

// Addr formats a 7-bit I²C slave address as "0x76".
func Addr(v uint16) string {
	return string([]byte{'0', 'x', hexd[(v>>4)&0xF], hexd[v&0xF]})
}

// Hex8 formats a uint32 as an 8-character hexadecimal string (e.g., "0000FFFF").
func Hex8(v uint32) string {
	out := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		out[i] = hexd[v&0xF]
		v >>= 4
	}
	return string(out)
}
