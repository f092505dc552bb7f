package frontmatter

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSplit_NoHeader_ReturnsBodyOnly(t *testing.T) {
	input := []byte("[link](Books.Guide.WebHome)\n")

	header, body, had, _, err := Split(input)
	require.NoError(t, err)
	require.False(t, had)
	require.Empty(t, header)
	require.Equal(t, input, body)
}

func TestSplit_HeaderAndBody(t *testing.T) {
	header, body, had, _, err := Split([]byte("---\ntitle: Intro\n---\n{{info}}x{{/info}}\n"))
	require.NoError(t, err)
	require.True(t, had)
	require.Equal(t, "title: Intro\n", string(header))
	require.Equal(t, "{{info}}x{{/info}}\n", string(body))
}

func TestSplit_MissingClosingDelimiter(t *testing.T) {
	_, _, had, _, err := Split([]byte("---\ntitle: Intro\nbody\n"))
	require.True(t, errors.Is(err, ErrMissingClosingDelimiter))
	require.False(t, had)
}

func TestSplit_CRLF(t *testing.T) {
	header, body, had, style, err := Split([]byte("---\r\ntitle: Intro\r\n---\r\nbody\r\n"))
	require.NoError(t, err)
	require.True(t, had)
	require.Equal(t, "\r\n", style.Newline)
	require.Equal(t, "title: Intro\r\n", string(header))
	require.Equal(t, "body\r\n", string(body))
}

func TestSplit_EmptyHeader(t *testing.T) {
	header, body, had, _, err := Split([]byte("---\n---\nbody"))
	require.NoError(t, err)
	require.True(t, had)
	require.Empty(t, header)
	require.Equal(t, "body", string(body))
}

func TestJoinRoundTrip(t *testing.T) {
	in := []byte("---\ntitle: Intro\n---\nbody\n")
	header, body, _, style, err := Split(in)
	require.NoError(t, err)
	require.Equal(t, in, Join(header, body, style))
}

func TestParseYAML(t *testing.T) {
	fields, err := ParseYAML(nil)
	require.NoError(t, err)
	require.Empty(t, fields)

	fields, err = ParseYAML([]byte("title: Intro\nhidden: true\n"))
	require.NoError(t, err)
	require.Equal(t, "Intro", fields["title"])
	require.Equal(t, true, fields["hidden"])

	_, err = ParseYAML([]byte("title: [unclosed\n"))
	require.Error(t, err)
}
