package signal

import "encoding/binary"

// Bound-message encoding, frozen: each field is a 4-byte big-endian length
// followed by the raw bytes, in order timestamp (8 bytes, big-endian
// nanoseconds), entropy state (8 bytes, big-endian), payload, hardware
// fingerprint. Length prefixes keep field boundaries unambiguous; generation
// and validation must reproduce this byte for byte.
func boundMessage(tsNanos int64, entropy uint64, payload, fingerprint []byte) []byte {
	buf := make([]byte, 0, 4*4+8+8+len(payload)+len(fingerprint))
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], uint64(tsNanos))
	buf = appendField(buf, tmp[:])
	binary.BigEndian.PutUint64(tmp[:], entropy)
	buf = appendField(buf, tmp[:])
	buf = appendField(buf, payload)
	buf = appendField(buf, fingerprint)
	return buf
}

func appendField(dst, field []byte) []byte {
	var l [4]byte
	binary.BigEndian.PutUint32(l[:], uint32(len(field)))
	dst = append(dst, l[:]...)
	return append(dst, field...)
}
