package store

import "sync"

const bookPrefix = "book:"

// keyPool provides reusable byte slices for building database keys.
var keyPool = sync.Pool{
	New: func() any {
		// Prefix, user id and record id (UUIDs) fit comfortably.
		return make([]byte, 0, 128)
	},
}

// bookKey builds "book:{userID}:{id}" in a pooled buffer.
// Callers MUST call releaseKey when done with the key.
func bookKey(userID, id string) []byte {
	buf, _ := keyPool.Get().([]byte)
	buf = buf[:0]
	buf = append(buf, bookPrefix...)
	buf = append(buf, userID...)
	buf = append(buf, ':')
	buf = append(buf, id...)
	return buf
}

// userPrefix is the key prefix of every book owned by userID.
func userPrefix(userID string) []byte {
	return []byte(bookPrefix + userID + ":")
}

// releaseKey returns a key buffer to the pool for reuse.
// After calling this, the key slice must not be used.
func releaseKey(key []byte) {
	// Avoid keeping oversized buffers in the pool
	if cap(key) <= 512 {
		keyPool.Put(key[:0]) //nolint:staticcheck // slices are the pooled type
	}
}
