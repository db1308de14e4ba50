package bpx

import "hash/crc32"

// weakSum is the BPX weak checksum: a wrapping sum of all bytes.
func weakSum(acc uint32, p []byte) uint32 {
	for _, b := range p {
		acc += uint32(b)
	}
	return acc
}

func checksum(c Checksum, p []byte) uint32 {
	switch c {
	case WeakChecksum:
		return weakSum(0, p)
	case Crc32Checksum:
		return crc32.ChecksumIEEE(p)
	}
	return 0
}
