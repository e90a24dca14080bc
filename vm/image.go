package vm

import (
	"encoding/binary"
	"io"
)

// ReadImage reads a program image of little-endian 16-bit words.
func ReadImage(r io.Reader) (words []uint16, err error) {
	data, err := io.ReadAll(io.LimitReader(r, 2*MEMORY_SIZE+1))
	if err != nil {
		return
	}

	if len(data) > 2*MEMORY_SIZE {
		err = ErrImageSize
		return
	}

	if len(data)%2 != 0 {
		err = ErrImageOdd
		return
	}

	words = make([]uint16, len(data)/2)
	for n := range words {
		words[n] = binary.LittleEndian.Uint16(data[2*n:])
	}

	return
}

// WriteImage writes a program image of little-endian 16-bit words.
func WriteImage(w io.Writer, words []uint16) (err error) {
	if len(words) > MEMORY_SIZE {
		err = ErrImageSize
		return
	}

	err = binary.Write(w, binary.LittleEndian, words)
	return
}
