// Package codec provides pluggable value serialization for tagcache.
// A Codec only sees the caller's value; the entry envelope (expiry, tags)
// is framed around the encoded payload by the cache itself.
package codec

// Codec encodes/decodes values V to []byte for storage.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}
