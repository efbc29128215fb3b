package identity

import (
	"crypto/md5"
	"encoding/hex"
)

// Key is the content-addressable identifier of a cached artifact.
type Key string

// Hash maps an identifier (a query string or a competitor identifier) to its
// cache key. The mapping is exact: "Asana.com" and "asana.com" are different
// identifiers and hash to different keys.
func Hash(identifier string) Key {
	sum := md5.Sum([]byte(identifier))
	return Key(hex.EncodeToString(sum[:]))
}

func (k Key) String() string { return string(k) }

// Short returns a prefix of the key suitable for log lines.
func (k Key) Short() string {
	if len(k) <= 8 {
		return string(k)
	}
	return string(k[:8])
}
