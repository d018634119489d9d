package dcxconfig

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/adobe/dcxsync/dcxerrors"
)

func TestParseAppliesDefaults(t *testing.T) {
	const doc = `
version: "1.0"
endpoint: https://example.test/composites
localRoot: /var/dcxsync
`
	c, err := Parse([]byte(doc))
	require.NoError(t, err)
	require.Equal(t, "https://example.test/composites", c.Endpoint)
	require.Equal(t, 2, c.Concurrency)
	require.Equal(t, WorkQueuePriority, c.WorkQueue)
	require.False(t, c.AutoReclaim)
}

func TestParseClampsConcurrency(t *testing.T) {
	const doc = `
version: "1.0"
endpoint: https://example.test
localRoot: /var/dcxsync
concurrency: 99
`
	c, err := Parse([]byte(doc))
	require.NoError(t, err)
	require.Equal(t, 5, c.Concurrency)
}

func TestParseRejectsMissingEndpoint(t *testing.T) {
	const doc = `
version: "1.0"
localRoot: /var/dcxsync
`
	_, err := Parse([]byte(doc))
	require.Error(t, err)
	require.True(t, dcxerrors.Is(err, dcxerrors.InvalidManifest))
}

func TestParseRejectsUnsupportedVersion(t *testing.T) {
	const doc = `
version: "9.9"
endpoint: https://example.test
localRoot: /var/dcxsync
`
	_, err := Parse([]byte(doc))
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "9.9"))
}

func TestParseRejectsUnknownWorkQueue(t *testing.T) {
	const doc = `
version: "1.0"
endpoint: https://example.test
localRoot: /var/dcxsync
workQueue: bogus
`
	_, err := Parse([]byte(doc))
	require.Error(t, err)
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile("/nonexistent/dcxsync/config.yaml")
	require.Error(t, err)
	require.True(t, dcxerrors.Is(err, dcxerrors.FileDoesNotExist))
}

func TestHTTPOptionsDecodesTransportOverrides(t *testing.T) {
	c, err := Parse([]byte(`
version: "1.0"
endpoint: https://example.test
localRoot: /var/dcxsync
concurrency: 3
transport:
  timeout: 45s
`))
	require.NoError(t, err)

	opts, err := c.HTTPOptions()
	require.NoError(t, err)
	require.Equal(t, "https://example.test", opts.BaseURL)
	require.Equal(t, 3, opts.Concurrency)
	require.Equal(t, 45*time.Second, opts.Timeout)
}

func TestMarshalRoundTrips(t *testing.T) {
	c, err := Parse([]byte(`
version: "1.0"
endpoint: https://example.test
localRoot: /var/dcxsync
autoReclaim: true
`))
	require.NoError(t, err)

	data, err := Marshal(c)
	require.NoError(t, err)

	round, err := Parse(data)
	require.NoError(t, err)
	require.Equal(t, c.Endpoint, round.Endpoint)
	require.Equal(t, c.AutoReclaim, round.AutoReclaim)
}
