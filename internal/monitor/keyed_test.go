package monitor

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
)

func TestLookupString(t *testing.T) {
	r := newTestReader(t, fstest.MapFS{
		"kv": file("alpha 1\n\nbeta two words\nlonely\nalpha 9\n"),
	})

	tests := []struct {
		name string
		key  string
		want Reading[string]
	}{
		{name: "first match wins", key: "alpha", want: Available("1")},
		{name: "value is the second token", key: "beta", want: Available("two")},
		{name: "key without value is skipped", key: "lonely", want: Unavailable[string]()},
		{name: "absent key", key: "gamma", want: Unavailable[string]()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.lookupString("kv", tt.key, noNormalize))
		})
	}
}

func TestLookupMissingFile(t *testing.T) {
	r := newTestReader(t, fstest.MapFS{})

	assert.Equal(t, Unavailable[string](), r.lookupString("nope", "k", noNormalize))
	assert.Equal(t, Unavailable[int64](), r.lookupInt("nope", "k", noNormalize))
	assert.Equal(t, Unavailable[uint64](), r.lookupUint("nope", "k", noNormalize))
	assert.False(t, r.scanKeyed("nope", noNormalize, func(string, string) bool { return true }))
}

func TestLookupIntParseFailure(t *testing.T) {
	r := newTestReader(t, fstest.MapFS{
		"kv": file("count abc\nneg -4\nbig 18446744073709551615\n"),
	})

	assert.False(t, r.lookupInt("kv", "count", noNormalize).Valid)
	assert.Equal(t, Available(int64(-4)), r.lookupInt("kv", "neg", noNormalize))
	assert.False(t, r.lookupUint("kv", "neg", noNormalize).Valid)
	assert.Equal(t, Available(uint64(18446744073709551615)), r.lookupUint("kv", "big", noNormalize))
}

func TestNormalizers(t *testing.T) {
	assert.Equal(t, "Uid \t1000\t1000", colonToSpace("Uid:\t1000\t1000"))
	assert.Equal(t, "PRETTY_NAME  Debian_GNU/Linux_12 ", quotedAssignment(`PRETTY_NAME="Debian GNU/Linux 12"`))
}

func TestFirstLine(t *testing.T) {
	r := newTestReader(t, fstest.MapFS{
		"one":   file("first\nsecond\n"),
		"empty": file(""),
	})

	assert.Equal(t, Available("first"), r.firstLine("one"))
	assert.Equal(t, Available(""), r.firstLine("empty"))
	assert.False(t, r.firstLine("missing").Valid)
}

func TestFirstLineNoTrailingNewline(t *testing.T) {
	r := newTestReader(t, fstest.MapFS{"one": file("only")})
	assert.Equal(t, Available("only"), r.firstLine("one"))
}
