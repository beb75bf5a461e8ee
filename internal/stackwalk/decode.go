package stackwalk

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedPointerSize is returned for pointer widths other than 4 and 8.
	ErrUnsupportedPointerSize = errors.New("unsupported pointer size")
	// ErrMisalignedPayload is returned when a stack buffer is not a whole number of pointers.
	ErrMisalignedPayload = errors.New("stack payload is not a multiple of the pointer size")
)

const (
	kernelCutoff32 = 0x8000_0000
	kernelCutoff64 = 0xFFFF_0000_0000_0000
)

// IsKernelAddress reports whether ip lies in kernel address space.
func IsKernelAddress(ip uint64, pointerSize uint32) bool {
	if pointerSize == 4 {
		return ip >= kernelCutoff32
	}
	return ip >= kernelCutoff64
}

// DecodeAddresses decodes a little-endian array of instruction pointers.
func DecodeAddresses(buf []byte, pointerSize uint32) ([]uint64, error) {
	if pointerSize != 4 && pointerSize != 8 {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedPointerSize, pointerSize)
	}
	width := int(pointerSize)
	if len(buf)%width != 0 {
		return nil, fmt.Errorf("%w: %d bytes, pointer size %d", ErrMisalignedPayload, len(buf), width)
	}

	addrs := make([]uint64, 0, len(buf)/width)
	for off := 0; off < len(buf); off += width {
		if width == 4 {
			addrs = append(addrs, uint64(binary.LittleEndian.Uint32(buf[off:])))
		} else {
			addrs = append(addrs, binary.LittleEndian.Uint64(buf[off:]))
		}
	}
	return addrs, nil
}
