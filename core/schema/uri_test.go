package schema

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadURI(t *testing.T) {
	u, err := URI().Read("https://example.com/path")
	require.Nil(t, err)
	require.Equal(t, "https", u.Scheme)
}

func TestReadURIBadInput(t *testing.T) {
	_, err := URI().Read(42)
	require.NotNil(t, err)
	require.Equal(t, "SchemaError", err.Name())

	_, err = URI().Read("not a uri")
	require.NotNil(t, err)
}

func TestReadURIWithProtocol(t *testing.T) {
	_, err := URI(WithProtocol("file:")).Read("file://alice/photos/")
	require.Nil(t, err)

	_, err = URI(WithProtocol("file:")).Read("https://example.com/")
	require.NotNil(t, err)
}

func TestReadURIString(t *testing.T) {
	s, err := URIString(WithProtocol("file:")).Read("file://alice/photos/")
	require.Nil(t, err)
	require.Equal(t, "file://alice/photos/", s)

	_, err = URIString().Read("nope")
	require.NotNil(t, err)
}
