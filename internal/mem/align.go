package mem

import (
	"unsafe"
)

// AddressSize is the width of a pointer on the current platform in bytes.
const AddressSize = int(unsafe.Sizeof(uintptr(0)))

// AlignUp rounds size up to the next multiple of AddressSize.
// Sizes that are already aligned are returned unchanged.
func AlignUp(size int) int {
	const mask = AddressSize - 1
	return (size + mask) &^ mask
}

// IsAligned reports whether the first byte of buf sits on an address-size boundary.
func IsAligned(buf []byte) bool {
	if len(buf) == 0 {
		return true
	}
	addr := uintptr(unsafe.Pointer(&buf[0])) //nolint:gosec // unsafe is required for memory alignment
	return addr&uintptr(AddressSize-1) == 0
}

// AlignBuffer trims buf so the returned slice starts on an address-size
// boundary and its length is a multiple of AddressSize. It may be shorter
// than buf by up to 2*(AddressSize-1) bytes, or empty when buf is too short.
func AlignBuffer(buf []byte) []byte {
	if len(buf) == 0 {
		return buf
	}
	addr := uintptr(unsafe.Pointer(&buf[0])) //nolint:gosec // unsafe is required for memory alignment
	offset := int((uintptr(AddressSize) - (addr & uintptr(AddressSize-1))) & uintptr(AddressSize-1))
	if offset >= len(buf) {
		return buf[:0]
	}
	buf = buf[offset:]
	return buf[:len(buf)&^(AddressSize-1)]
}
