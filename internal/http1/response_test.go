package http1

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResponse_WriteTo_InMemoryBody(t *testing.T) {
	resp := NewResponse(200)
	resp.SetBody([]byte("<html>ok</html>"), "text/html; charset=utf-8")

	var buf bytes.Buffer
	require.NoError(t, resp.WriteTo(&buf, false))

	out := buf.String()
	head, body, found := strings.Cut(out, "\r\n\r\n")
	require.True(t, found)
	lines := strings.Split(head, "\r\n")

	assert.Equal(t, "HTTP/1.0 200 OK", lines[0])
	assert.Contains(t, lines, "Content-Type: text/html; charset=utf-8")
	assert.Contains(t, lines, "Content-Length: 15")
	assert.Contains(t, lines, "Connection: close")
	assert.Equal(t, "<html>ok</html>", body)
}

func TestResponse_WriteTo_HeaderOrderPreserved(t *testing.T) {
	resp := NewResponse(404)
	resp.SetHeader("Content-Type", "text/html; charset=utf-8")
	resp.SetHeader("X-First", "1")
	resp.SetHeader("X-Second", "2")
	resp.SetHeader("X-First", "updated")

	var buf bytes.Buffer
	require.NoError(t, resp.WriteTo(&buf, false))

	out := buf.String()
	first := strings.Index(out, "X-First: updated")
	second := strings.Index(out, "X-Second: 2")
	require.Positive(t, first)
	require.Positive(t, second)
	assert.Less(t, first, second, "replacing a header must keep its position")
}

func TestResponse_WriteTo_HeadSuppressesBody(t *testing.T) {
	resp := NewResponse(200)
	resp.SetBody([]byte("some file content"), "text/plain; charset=utf-8")

	var buf bytes.Buffer
	require.NoError(t, resp.WriteTo(&buf, true))

	out := buf.String()
	assert.Contains(t, out, "Content-Length: 17")
	assert.True(t, strings.HasSuffix(out, "\r\n\r\n"), "HEAD response must end after headers")
}

func TestResponse_WriteTo_StreamedBody(t *testing.T) {
	content := strings.Repeat("x", 3*StreamChunkSize+17)
	resp := NewResponse(200)
	resp.SetHeader("Content-Type", "application/octet-stream")
	resp.BodyReader = io.NopCloser(strings.NewReader(content))
	resp.ContentLength = int64(len(content))

	var buf bytes.Buffer
	require.NoError(t, resp.WriteTo(&buf, false))

	_, body, found := strings.Cut(buf.String(), "\r\n\r\n")
	require.True(t, found)
	assert.Equal(t, content, body)
}

func TestResponse_WriteTo_UnknownStatus(t *testing.T) {
	resp := NewResponse(799)

	var buf bytes.Buffer
	require.NoError(t, resp.WriteTo(&buf, false))
	assert.True(t, strings.HasPrefix(buf.String(), "HTTP/1.0 799 "))
}
