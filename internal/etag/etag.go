// Package etag implements the conditional response cache: a fingerprint of
// the running build, computed once, and the If-None-Match evaluation that
// lets the HTTP server answer unchanged content with 304 Not Modified.
package etag

import (
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
)

const (
	// DigestBytes is how many leading digest bytes make up a fingerprint.
	DigestBytes = 8

	// Length is the length of a fingerprint: two quotes plus the hex digits.
	Length = 2 + 2*DigestBytes
)

// ErrUnavailable is returned when the build identity cannot be read.
var ErrUnavailable = errors.New("fingerprint source unavailable")

// Fingerprint is a quoted, fixed-length strong entity tag.
type Fingerprint string

// String implements fmt.Stringer
func (f Fingerprint) String() string {
	return string(f)
}

// Valid reports whether f has the fixed fingerprint shape.
func (f Fingerprint) Valid() bool {
	if len(f) != Length || f[0] != '"' || f[Length-1] != '"' {
		return false
	}
	_, err := hex.DecodeString(string(f[1 : Length-1]))
	return err == nil
}

// Source provides the digest of the running build.
type Source interface {
	BuildDigest() ([]byte, error)
}

// Compute derives the fingerprint from a build digest: the first DigestBytes
// bytes in lowercase hex, quoted.
func Compute(digest []byte) (Fingerprint, error) {
	if len(digest) < DigestBytes {
		return "", fmt.Errorf("digest has %d bytes, need %d: %w", len(digest), DigestBytes, ErrUnavailable)
	}
	return Fingerprint(`"` + hex.EncodeToString(digest[:DigestBytes]) + `"`), nil
}

// FromSource reads the digest from src and computes its fingerprint.
func FromSource(src Source) (Fingerprint, error) {
	if src == nil {
		return "", fmt.Errorf("no source: %w", ErrUnavailable)
	}
	digest, err := src.BuildDigest()
	if err != nil {
		return "", fmt.Errorf("read build digest: %v: %w", err, ErrUnavailable)
	}
	return Compute(digest)
}

// Outcome is the result of evaluating a conditional request.
type Outcome int

const (
	// Deliver means the full payload must be sent.
	Deliver Outcome = iota
	// Unchanged means the client copy is current; answer 304.
	Unchanged
)

// String returns the outcome name
func (o Outcome) String() string {
	switch o {
	case Unchanged:
		return "unchanged"
	case Deliver:
		return "deliver"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Evaluate compares a client validator with the current fingerprint. Only an
// exact, byte-for-byte match counts; a missing (empty) validator, a list of
// tags or a weak tag all yield Deliver.
func Evaluate(validator string, current Fingerprint) Outcome {
	if validator == "" || current == "" {
		return Deliver
	}
	if len(validator) != len(current) {
		return Deliver
	}
	if validator == string(current) {
		return Unchanged
	}
	return Deliver
}

// Cache holds the fingerprint for the process lifetime. It is loaded once
// during bring-up and is read-only afterwards.
type Cache struct {
	once sync.Once
	src  Source
	fp   Fingerprint
	err  error
}

// NewCache creates a cache over src. Nothing is read until Load.
func NewCache(src Source) *Cache {
	return &Cache{src: src}
}

// Load computes the fingerprint on the first call and returns the same result
// on every later call.
func (c *Cache) Load() (Fingerprint, error) {
	c.once.Do(func() {
		c.fp, c.err = FromSource(c.src)
	})
	return c.fp, c.err
}

// Fingerprint returns the loaded fingerprint, or "" before a successful Load.
func (c *Cache) Fingerprint() Fingerprint {
	fp, err := c.Load()
	if err != nil {
		return ""
	}
	return fp
}
