package tvhash

import (
	"encoding/binary"
	"errors"
	"time"

	"lukechampine.com/blake3"
)

var ErrNoMasterSecret = errors.New("time-variant hash master secret is empty")

const (
	bucketKeyContext = "sigil/tvhash/bucket-key/v1"

	// DefaultBucketWidth trades replay-window tightness against clock skew
	// tolerance; validation always keys on the signal's own bucket.
	DefaultBucketWidth = time.Minute

	DigestSize = 32
)

// Engine computes keyed BLAKE3 digests whose effective key rotates with
// coarse time buckets. Identical payloads hashed in different buckets
// produce different digests.
type Engine struct {
	master []byte
	width  time.Duration
}

func NewEngine(master []byte, width time.Duration) (*Engine, error) {
	if len(master) == 0 {
		return nil, ErrNoMasterSecret
	}
	if width <= 0 {
		width = DefaultBucketWidth
	}
	return &Engine{master: append([]byte(nil), master...), width: width}, nil
}

func (e *Engine) Width() time.Duration {
	return e.width
}

// Bucket maps a nanosecond timestamp onto its coarse time bucket.
func Bucket(tsNanos int64, width time.Duration) int64 {
	if width <= 0 {
		width = DefaultBucketWidth
	}
	return tsNanos / int64(width)
}

// BucketKey derives the keyed-hash key for one bucket from the master secret.
func (e *Engine) BucketKey(bucket int64) [DigestSize]byte {
	material := make([]byte, 0, len(e.master)+8)
	material = append(material, e.master...)
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(bucket))
	material = append(material, b[:]...)

	var key [DigestSize]byte
	blake3.DeriveKey(key[:], bucketKeyContext, material)
	return key
}

// Digest computes the keyed digest of payload under the given bucket key.
func (e *Engine) Digest(key [DigestSize]byte, payload []byte) [DigestSize]byte {
	h := blake3.New(DigestSize, key[:])
	_, _ = h.Write(payload)
	var out [DigestSize]byte
	copy(out[:], h.Sum(nil))
	return out
}

// DigestAt digests payload under the key of the bucket containing tsNanos.
func (e *Engine) DigestAt(tsNanos int64, payload []byte) [DigestSize]byte {
	return e.Digest(e.BucketKey(Bucket(tsNanos, e.width)), payload)
}
