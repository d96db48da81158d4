package manifest

import (
	"crypto/sha256"
	"encoding/binary"
)

// contentHash returns a 64-bit digest of data, used to decide whether a
// manifest file actually changed before asking afs to write it. It folds
// the same SHA-256 sum compile/oal, compile/mal and compile/lal already use
// for expression identity down to 8 bytes — a "skip unchanged file" cache
// needs no more collision resistance than that, and reusing it means the
// writer carries no hashing scheme of its own.
func contentHash(data []byte) (uint64, error) {
	sum := sha256.Sum256(data)
	return binary.BigEndian.Uint64(sum[:8]), nil
}
