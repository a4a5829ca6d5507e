// Package imageid assigns blob identifiers to the image payloads of one upload batch.
//
// The default strategy treats two payloads as the same image when their encoded byte lengths
// match, which lets a user pick one file for many cards (a shared back design, say) without the
// image being stored twice. It is a cheap proxy for equality, not a content hash: two different
// images of identical length share an identifier. A collision only misattributes a display image,
// and uploads never overwrite an existing key.
package imageid

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/google/uuid"
)

type Strategy string

const (
	ByLength Strategy = "length"
	ByDigest Strategy = "digest"
)

func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case ByLength, ByDigest:
		return Strategy(s), nil
	}
	return "", fmt.Errorf("unknown dedup strategy %q", s)
}

// FullSizeKey and ThumbnailKey derive the two blob keys stored for one identifier.
func FullSizeKey(id string) string  { return id + "_fullSize" }
func ThumbnailKey(id string) string { return id + "_thumbnail" }

type Deriver struct {
	strategy Strategy
	newID    func() string
}

func NewDeriver(strategy Strategy) *Deriver {
	return &Deriver{strategy: strategy, newID: uuid.NewString}
}

// Assignment is the payload to identifier mapping for one batch.
type Assignment struct {
	strategy Strategy
	ids      map[string]string
}

// Derive maps every non-empty payload to an identifier. Payloads considered equal under the
// deriver's strategy share one identifier; nothing outside the batch is consulted.
func (d *Deriver) Derive(payloads [][]byte) Assignment {
	a := Assignment{strategy: d.strategy, ids: make(map[string]string)}
	for _, p := range payloads {
		if len(p) == 0 {
			continue
		}
		k := a.key(p)
		if _, ok := a.ids[k]; ok {
			continue
		}
		if d.strategy == ByDigest {
			a.ids[k] = k
		} else {
			a.ids[k] = d.newID()
		}
	}
	return a
}

func (a Assignment) key(p []byte) string {
	if a.strategy == ByDigest {
		sum := sha256.Sum256(p)
		return hex.EncodeToString(sum[:])
	}
	return fmt.Sprintf("len:%d", len(p))
}

// IDFor returns the identifier for payload, or false if the payload was empty or not in the batch.
func (a Assignment) IDFor(payload []byte) (string, bool) {
	if len(payload) == 0 {
		return "", false
	}
	id, ok := a.ids[a.key(payload)]
	return id, ok
}

// IDs returns the distinct identifiers, sorted.
func (a Assignment) IDs() []string {
	out := make([]string, 0, len(a.ids))
	for _, id := range a.ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (a Assignment) Len() int {
	return len(a.ids)
}
