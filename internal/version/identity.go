package version

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
)

// ErrNoIdentity is returned when the running build cannot be read.
var ErrNoIdentity = errors.New("build identity unavailable")

// Identity hashes the running executable. The digest changes whenever a
// different binary is deployed, which makes it usable as a cache validator
// for content embedded in the binary.
type Identity struct {
	// Path overrides the executable path. Empty means os.Executable.
	Path string

	once   sync.Once
	digest []byte
	err    error
}

// BuildDigest returns the SHA-256 of the executable. The file is read once.
func (id *Identity) BuildDigest() ([]byte, error) {
	id.once.Do(func() {
		id.digest, id.err = hashFile(id.Path)
	})
	return id.digest, id.err
}

func hashFile(path string) ([]byte, error) {
	if path == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNoIdentity, err)
		}
		path = exe
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoIdentity, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrNoIdentity, path, err)
	}
	return h.Sum(nil), nil
}

// StaticIdentity is a fixed digest, used in tests and for reproducible output.
type StaticIdentity []byte

// BuildDigest returns the fixed digest.
func (s StaticIdentity) BuildDigest() ([]byte, error) {
	if len(s) == 0 {
		return nil, ErrNoIdentity
	}
	return []byte(s), nil
}
