package zrtppacket

import (
	"encoding/binary"
	"hash/crc32"
)

// crcTable is the reflected CRC-32 with polynomial 0x1EDC6F41
// (Castagnoli), per RFC 6189 §4.C. hash/crc32 ships this table built in.
var crcTable = crc32.MakeTable(crc32.Castagnoli)

// crcOf computes the CRC-32C over data and returns it byte-swapped, as
// RFC 6189 §4.C requires for the on-the-wire trailer ("the CRC is byte-swapped
// before transmission").
func crcOf(data []byte) uint32 {
	sum := crc32.Checksum(data, crcTable)
	return swap32(sum)
}

func swap32(v uint32) uint32 {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return binary.LittleEndian.Uint32(b[:])
}
