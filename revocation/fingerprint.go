package revocation

import (
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// fingerprintKey domain-separates revocation fingerprints from any other
// BLAKE3 use of the same bytes. ASCII "authgate.revocation", zero-padded.
var fingerprintKey = [32]byte{
	'a', 'u', 't', 'h', 'g', 'a', 't', 'e', '.',
	'r', 'e', 'v', 'o', 'c', 'a', 't', 'i', 'o', 'n',
}

// Fingerprint returns the hex-encoded keyed BLAKE3 digest of id.
func Fingerprint(id string) string {
	hasher, err := blake3.NewKeyed(fingerprintKey[:])
	if err != nil {
		// Only a wrong key length fails, and the key is a fixed array.
		panic("revocation: blake3 keyed hash initialization failed: " + err.Error())
	}
	_, _ = hasher.Write([]byte(id))
	return hex.EncodeToString(hasher.Sum(nil))
}
