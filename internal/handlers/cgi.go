package handlers

import (
	"bytes"
	"context"
	"errors"
	"net"
	"net/http"
	"os/exec"
	"strconv"
	"time"

	"example.com/tinyhttpd/internal/http1"
	"example.com/tinyhttpd/internal/logger"
)

// CGIRunner executes script targets as child processes. The script path is
// passed as the argument vector, never through a shell, so request content
// cannot inject commands. Request metadata travels in the environment and
// the request body on the child's standard input; the child's standard
// output becomes the response body verbatim.
type CGIRunner struct {
	log     *logger.Logger
	timeout time.Duration
}

// NewCGIRunner creates the script execution handler. timeout bounds each
// child process; on expiry the process is killed.
func NewCGIRunner(lg *logger.Logger, timeout time.Duration) *CGIRunner {
	return &CGIRunner{log: lg, timeout: timeout}
}

// Respond runs the script at fsPath for req. A child that exits non-zero or
// exceeds the timeout yields a 500 response; its stderr is logged and never
// echoed to the client.
func (h *CGIRunner) Respond(ctx context.Context, req *http1.Request, fsPath string) *http1.Response {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, fsPath)
	cmd.WaitDelay = time.Second

	// REMOTE_ADDR carries the client IP only, per the CGI convention.
	remoteAddr := req.RemoteAddr
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		remoteAddr = host
	}

	cmd.Env = []string{
		"GATEWAY_INTERFACE=CGI/1.1",
		"SERVER_PROTOCOL=HTTP/1.0",
		"REQUEST_METHOD=" + req.Method,
		"SCRIPT_FILENAME=" + fsPath,
		"QUERY_STRING=" + req.Query,
		"CONTENT_LENGTH=" + strconv.Itoa(len(req.Body)),
		"CONTENT_TYPE=" + req.ContentType(),
		"REMOTE_ADDR=" + remoteAddr,
	}
	cmd.Stdin = bytes.NewReader(req.Body)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	if ctx.Err() == context.DeadlineExceeded {
		h.log.Error("Script execution timed out", logger.LogFields{
			"script":  fsPath,
			"timeout": h.timeout.String(),
		})
		return ErrorResponse(http.StatusInternalServerError, "Script execution failed.", req.Header.Get("Accept"))
	}

	if err != nil {
		fields := logger.LogFields{"script": fsPath, "error": err.Error()}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			fields["exit_code"] = exitErr.ExitCode()
		}
		if stderr.Len() > 0 {
			fields["stderr"] = stderr.String()
		}
		h.log.Error("Script exited with failure", fields)
		return ErrorResponse(http.StatusInternalServerError, "Script execution failed.", req.Header.Get("Accept"))
	}

	if stderr.Len() > 0 {
		h.log.Warn("Script wrote to stderr", logger.LogFields{
			"script": fsPath,
			"stderr": stderr.String(),
		})
	}

	resp := http1.NewResponse(http.StatusOK)
	resp.SetBody(stdout.Bytes(), "text/html; charset=utf-8")
	return resp
}
