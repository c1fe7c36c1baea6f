package mailclient

import (
	"strings"
	"testing"

	"github.com/emersion/go-message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextBody_MultipartAlternative(t *testing.T) {
	t.Parallel()

	raw := `Content-Type: multipart/alternative; boundary="xyz"

--xyz
Content-Type: text/plain

This is the plain text version.

--xyz
Content-Type: text/html

<b>This is the HTML version.</b>

--xyz--`

	entity, err := message.Read(strings.NewReader(raw))
	require.NoError(t, err)

	assert.Equal(t, "This is the plain text version.\n", textBody(entity))
}

func TestTextBody_SinglePart(t *testing.T) {
	t.Parallel()

	raw := `Content-Type: text/plain

just text`

	entity, err := message.Read(strings.NewReader(raw))
	require.NoError(t, err)

	assert.Equal(t, "just text", textBody(entity))
}

func TestTextBody_HTMLOnly(t *testing.T) {
	t.Parallel()

	raw := `Content-Type: text/html

<b>html only</b>`

	entity, err := message.Read(strings.NewReader(raw))
	require.NoError(t, err)

	assert.Equal(t, "", textBody(entity))
}

func TestUIDSet(t *testing.T) {
	t.Parallel()

	seqset, err := uidSet("42")
	require.NoError(t, err)
	assert.Equal(t, "42", seqset.String())

	_, err = uidSet("not-a-uid")
	require.Error(t, err)
}
