package binary

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"
)

// ioReadFull centralises the io.ReadFull call used by the fixed-width
// float readers so instr.go doesn't need a second import alias for io.
func ioReadFull(r *bytes.Reader, buf []byte) (int, error) {
	return io.ReadFull(r, buf)
}

func float32FromBits(buf [4]byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(buf[:]))
}

func float64FromBits(buf [8]byte) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(buf[:]))
}

func float32ToBits(v float32) [4]byte {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], math.Float32bits(v))
	return buf
}

func float64ToBits(v float64) [8]byte {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
	return buf
}
