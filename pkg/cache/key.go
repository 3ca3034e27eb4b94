package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"slices"
	"strings"
)

// Key identifies a request under normalization: the topic is trimmed and
// lower-cased and the aspects are sorted. Equal normalized requests share a
// key and any change to the aspect set changes it.
type Key string

// DeriveKey hashes the normalized topic and aspects with SHA-256. The pair is
// JSON-encoded first so that no two distinct inputs concatenate to the same
// byte string.
func DeriveKey(topic string, aspects []string) Key {
	sorted := slices.Clone(aspects)
	if sorted == nil {
		sorted = []string{}
	}
	slices.Sort(sorted)

	buf, _ := json.Marshal(struct {
		Topic   string   `json:"topic"`
		Aspects []string `json:"aspects"`
	}{
		Topic:   strings.ToLower(strings.TrimSpace(topic)),
		Aspects: sorted,
	})

	sum := sha256.Sum256(buf)
	return Key(hex.EncodeToString(sum[:]))
}

// For returns the store key of the given stage, e.g. "gathered:<hex>".
func (k Key) For(stage Stage) string {
	return string(stage) + ":" + string(k)
}

func (k Key) String() string {
	return string(k)
}
