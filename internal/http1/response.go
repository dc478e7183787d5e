package http1

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
)

// StreamChunkSize bounds the buffer used when copying a streamed body, so a
// large file transfer holds at most this much of the file in memory.
const StreamChunkSize = 32 << 10

// HeaderField is a single response header. Responses carry headers as a
// slice so output order matches insertion order.
type HeaderField struct {
	Name  string
	Value string
}

// Response is an outbound response. The body is either Body (in-memory) or
// BodyReader (streamed, ContentLength bytes); at most one is set. For
// bodyless responses both are empty and ContentLength is 0 unless set
// explicitly (HEAD keeps the length the GET body would have had).
type Response struct {
	StatusCode    int
	Headers       []HeaderField
	Body          []byte
	BodyReader    io.ReadCloser
	ContentLength int64
}

// NewResponse creates a response with the given status and no headers.
func NewResponse(status int) *Response {
	return &Response{StatusCode: status}
}

// SetHeader appends a header, replacing an existing field of the same name
// while keeping its position.
func (r *Response) SetHeader(name, value string) {
	for i := range r.Headers {
		if r.Headers[i].Name == name {
			r.Headers[i].Value = value
			return
		}
	}
	r.Headers = append(r.Headers, HeaderField{Name: name, Value: value})
}

// SetBody sets an in-memory body and the matching ContentLength.
func (r *Response) SetBody(body []byte, contentType string) {
	r.Body = body
	r.ContentLength = int64(len(body))
	r.SetHeader("Content-Type", contentType)
}

// BodySize returns the number of body bytes this response will carry.
func (r *Response) BodySize() int64 {
	return r.ContentLength
}

// WriteTo serializes the response to w. When suppressBody is true (HEAD) the
// status line and headers, including Content-Length, are written exactly as
// for GET and the body is skipped. A streamed body is copied in
// StreamChunkSize chunks and its reader closed regardless of outcome.
func (r *Response) WriteTo(w io.Writer, suppressBody bool) error {
	if r.BodyReader != nil {
		defer r.BodyReader.Close()
	}

	reason := http.StatusText(r.StatusCode)
	if reason == "" {
		reason = "Status"
	}
	if _, err := fmt.Fprintf(w, "HTTP/1.0 %d %s\r\n", r.StatusCode, reason); err != nil {
		return err
	}

	hasLength := false
	for _, h := range r.Headers {
		if h.Name == "Content-Length" {
			hasLength = true
		}
		if _, err := fmt.Fprintf(w, "%s: %s\r\n", h.Name, h.Value); err != nil {
			return err
		}
	}
	if !hasLength {
		if _, err := io.WriteString(w, "Content-Length: "+strconv.FormatInt(r.ContentLength, 10)+"\r\n"); err != nil {
			return err
		}
	}
	if _, err := io.WriteString(w, "Connection: close\r\n\r\n"); err != nil {
		return err
	}

	if suppressBody {
		return nil
	}

	if r.BodyReader != nil {
		buf := make([]byte, StreamChunkSize)
		_, err := io.CopyBuffer(w, io.LimitReader(r.BodyReader, r.ContentLength), buf)
		return err
	}
	if len(r.Body) > 0 {
		_, err := w.Write(r.Body)
		return err
	}
	return nil
}
