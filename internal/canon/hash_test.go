package canon

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashWithDomainKnownValue(t *testing.T) {
	d := HashWithDomain(DomainLayer, []byte(`{}`))

	require.NoError(t, d.Validate())
	assert.Equal(t, "sha256:11de951ea1df9dfb2df7bc69f265c9fb236ea88087bfa78ac3214c12fba55d15", d.String())
}

func TestHashWithDomainSeparatesDomains(t *testing.T) {
	data := []byte(`{"handler":"index.handler"}`)

	assert.NotEqual(t, HashWithDomain(DomainLayer, data), HashWithDomain(DomainFunctionVersion, data))
	assert.NotEqual(t, Hash(data), HashWithDomain(DomainLayer, data))
}

func TestHash(t *testing.T) {
	assert.Equal(t, "sha256:44136fa355b3678a1146ad16f7e8649e94fb4fc21fe77e8310c060f61caaff8a", Hash([]byte(`{}`)).String())
}

func TestHashContentIgnoresKeyOrder(t *testing.T) {
	h1, err := HashContent(DomainFunctionVersion, map[string]any{"a": 1, "b": "x"})
	require.NoError(t, err)
	h2, err := HashContent(DomainFunctionVersion, map[string]any{"b": "x", "a": 1})
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
}

func TestFileSHA256MatchesBytesSHA256(t *testing.T) {
	data := "zip-bytes"

	fromReader, err := FileSHA256(strings.NewReader(data))
	require.NoError(t, err)

	assert.Equal(t, BytesSHA256([]byte(data)), fromReader)
	assert.Len(t, fromReader, 44, "base64 SHA-256 is 44 characters")
}
