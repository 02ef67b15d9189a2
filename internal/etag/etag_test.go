package etag

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticSource struct {
	digest []byte
	err    error
	calls  atomic.Int32
}

func (s *staticSource) BuildDigest() ([]byte, error) {
	s.calls.Add(1)
	return s.digest, s.err
}

var testDigest = []byte{0xde, 0xad, 0xbe, 0xef, 0x01, 0x23, 0x45, 0x67, 0x89, 0xab}

func TestCompute(t *testing.T) {
	fp, err := Compute(testDigest)
	require.NoError(t, err)
	assert.Equal(t, Fingerprint(`"deadbeef01234567"`), fp)
	assert.Len(t, fp.String(), Length)
	assert.True(t, fp.Valid())

	again, err := Compute(testDigest)
	require.NoError(t, err)
	assert.Equal(t, fp, again, "fingerprint must be deterministic")
}

func TestComputeShortDigest(t *testing.T) {
	_, err := Compute([]byte{1, 2, 3})
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestFromSourceUnavailable(t *testing.T) {
	_, err := FromSource(&staticSource{err: errors.New("no executable")})
	require.ErrorIs(t, err, ErrUnavailable)

	_, err = FromSource(nil)
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestEvaluate(t *testing.T) {
	const f = Fingerprint(`"abc123"`)

	tests := []struct {
		name      string
		validator string
		current   Fingerprint
		want      Outcome
	}{
		{name: "exact match", validator: `"abc123"`, current: f, want: Unchanged},
		{name: "different tag", validator: `"zzz999"`, current: f, want: Deliver},
		{name: "missing header", validator: "", current: f, want: Deliver},
		{name: "weak tag", validator: `W/"abc123"`, current: f, want: Deliver},
		{name: "unquoted", validator: `abc123`, current: f, want: Deliver},
		{name: "list", validator: `"abc123", "zzz999"`, current: f, want: Deliver},
		{name: "prefix only", validator: `"abc12"`, current: f, want: Deliver},
		{name: "no fingerprint", validator: `""`, current: "", want: Deliver},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Evaluate(tt.validator, tt.current))
		})
	}
}

func TestEvaluateComputedFingerprint(t *testing.T) {
	fp, err := Compute(testDigest)
	require.NoError(t, err)

	assert.Equal(t, Unchanged, Evaluate(fp.String(), fp))
	assert.Equal(t, Deliver, Evaluate(`"0000000000000000"`, fp))
}

func TestCacheLoadsOnce(t *testing.T) {
	src := &staticSource{digest: testDigest}
	c := NewCache(src)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fp, err := c.Load()
			assert.NoError(t, err)
			assert.Equal(t, Fingerprint(`"deadbeef01234567"`), fp)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), src.calls.Load())
	assert.Equal(t, Fingerprint(`"deadbeef01234567"`), c.Fingerprint())
}

func TestCacheFailure(t *testing.T) {
	c := NewCache(&staticSource{err: errors.New("gone")})
	_, err := c.Load()
	require.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, Fingerprint(""), c.Fingerprint())
}
