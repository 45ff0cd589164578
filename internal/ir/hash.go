package ir

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainTuple  = "navicue/tuple/v1"
	DomainRecipe = "navicue/recipe/v1"
)

// digestWithDomain computes SHA256(domain + 0x00 + data).
// The null byte separator prevents domain/data boundary ambiguity.
func digestWithDomain(domain string, data []byte) [sha256.Size]byte {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	var out [sha256.Size]byte
	copy(out[:], h.Sum(nil))
	return out
}

// TupleDigest returns the domain-separated digest of a tuple's canonical form.
// Stable across restarts: it depends only on the tuple's field values.
func TupleDigest(t SelectorTuple) [sha256.Size]byte {
	return digestWithDomain(DomainTuple, []byte(t.Key()))
}

// TupleID is the hex form of TupleDigest.
func TupleID(t SelectorTuple) string {
	d := TupleDigest(t)
	return hex.EncodeToString(d[:])
}

// TupleSeed folds the tuple digest into the 64-bit seed that keys the
// compositor's pseudo-random stream.
func TupleSeed(t SelectorTuple) uint64 {
	d := TupleDigest(t)
	return binary.BigEndian.Uint64(d[:8])
}

// RecipeDigest computes the content hash of a recipe's canonical form.
// Two recipes are byte-identical iff their digests match.
func RecipeDigest(r RenderRecipe) (string, error) {
	canonical, err := r.MarshalCanonical()
	if err != nil {
		return "", fmt.Errorf("RecipeDigest: failed to marshal: %w", err)
	}
	d := digestWithDomain(DomainRecipe, canonical)
	return hex.EncodeToString(d[:]), nil
}
