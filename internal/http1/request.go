// Package http1 implements the HTTP/1.0 subset this server speaks on the
// wire: one request per connection, no keep-alive, no chunked transfer.
// Requests are parsed from a raw connection; responses are written with
// insertion-ordered headers and either an in-memory or a streamed body.
package http1

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
)

// Parse limits. A request line or header block beyond these is malformed.
const (
	MaxRequestLineBytes = 8 << 10
	MaxHeaderBytes      = 1 << 20
)

// ErrMalformed marks protocol faults in the incoming request. The dispatcher
// answers these with 400 and the connection is closed.
var ErrMalformed = errors.New("malformed request")

// ErrBodyTooLarge is returned when the declared Content-Length exceeds the
// configured limit. Treated as a protocol fault.
var ErrBodyTooLarge = errors.New("request body too large")

// Request is a parsed inbound request.
type Request struct {
	Method  string
	RawPath string // path exactly as it appeared on the request line, without the query
	Query   string // raw query string, without the '?'
	Proto   string // e.g. "HTTP/1.0"
	Header  http.Header
	Body    []byte

	RemoteAddr string
}

// ContentType returns the Content-Type request header, or "".
func (r *Request) ContentType() string { return r.Header.Get("Content-Type") }

// ReadRequest parses one request from r. maxBody bounds the accepted
// Content-Length. The reader is capped while parsing: at most
// MaxRequestLineBytes are consumed for the request line and MaxHeaderBytes
// for the header block, so an oversized head is rejected without being
// buffered. io.EOF is returned unwrapped when the connection closes before
// any byte of a request arrives, so callers can tell a clean disconnect from
// a protocol fault.
func ReadRequest(r io.Reader, maxBody int64) (*Request, error) {
	lim := &io.LimitedReader{R: r, N: MaxRequestLineBytes}
	br := bufio.NewReader(lim)
	tp := textproto.NewReader(br)

	line, err := tp.ReadLine()
	if err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("%w: reading request line: %v", ErrMalformed, err)
	}
	// A returned line of MaxRequestLineBytes means the limiter cut it off:
	// a complete line that long would have needed at least one more byte for
	// the terminating newline.
	if len(line) >= MaxRequestLineBytes {
		return nil, fmt.Errorf("%w: request line exceeds %d bytes", ErrMalformed, MaxRequestLineBytes)
	}

	method, rest, ok := strings.Cut(line, " ")
	if !ok {
		return nil, fmt.Errorf("%w: request line %q", ErrMalformed, line)
	}
	target, proto, ok := strings.Cut(rest, " ")
	if !ok {
		return nil, fmt.Errorf("%w: request line %q", ErrMalformed, line)
	}
	if !validMethod(method) {
		return nil, fmt.Errorf("%w: invalid method %q", ErrMalformed, method)
	}
	if !strings.HasPrefix(proto, "HTTP/") {
		return nil, fmt.Errorf("%w: invalid protocol %q", ErrMalformed, proto)
	}
	if target == "" || !strings.HasPrefix(target, "/") {
		return nil, fmt.Errorf("%w: invalid request target %q", ErrMalformed, target)
	}

	rawPath, query, _ := strings.Cut(target, "?")

	lim.N = MaxHeaderBytes
	mimeHeader, err := tp.ReadMIMEHeader()
	if err != nil {
		return nil, fmt.Errorf("%w: reading headers: %v", ErrMalformed, err)
	}
	if headerBytes(mimeHeader) > MaxHeaderBytes {
		return nil, fmt.Errorf("%w: header block exceeds %d bytes", ErrMalformed, MaxHeaderBytes)
	}

	req := &Request{
		Method:  method,
		RawPath: rawPath,
		Query:   query,
		Proto:   proto,
		Header:  http.Header(mimeHeader),
	}

	if clStr := req.Header.Get("Content-Length"); clStr != "" {
		cl, err := strconv.ParseInt(clStr, 10, 64)
		if err != nil || cl < 0 {
			return nil, fmt.Errorf("%w: invalid Content-Length %q", ErrMalformed, clStr)
		}
		if cl > maxBody {
			return nil, fmt.Errorf("%w: declared length %d exceeds limit %d", ErrBodyTooLarge, cl, maxBody)
		}
		if cl > 0 {
			lim.N = cl // body bytes not already buffered come out of their own budget
			body := make([]byte, cl)
			if _, err := io.ReadFull(br, body); err != nil {
				return nil, fmt.Errorf("%w: reading body: %v", ErrMalformed, err)
			}
			req.Body = body
		}
	}

	return req, nil
}

func validMethod(m string) bool {
	if m == "" {
		return false
	}
	for _, c := range m {
		if c < 'A' || c > 'Z' {
			return false
		}
	}
	return true
}

func headerBytes(h textproto.MIMEHeader) int {
	n := 0
	for k, vv := range h {
		for _, v := range vv {
			n += len(k) + len(v) + 4
		}
	}
	return n
}
