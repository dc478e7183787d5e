package handlers

import (
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"example.com/tinyhttpd/internal/http1"
)

// ErrorDetail represents the inner structure of a JSON error response.
type ErrorDetail struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
	Detail     string `json:"detail,omitempty"`
}

// ErrorResponseJSON represents the full JSON error response body.
type ErrorResponseJSON struct {
	Error ErrorDetail `json:"error"`
}

// defaultHTMLMessages maps HTTP status codes to their default HTML messages.
// These are the only words a client ever sees for a failure; diagnostic
// detail stays in the server log.
var defaultHTMLMessages = map[int]struct {
	Title   string
	Heading string
	Message string
}{
	http.StatusBadRequest: {
		Title:   "400 Bad Request",
		Heading: "Bad Request",
		Message: "The server could not understand the request.",
	},
	http.StatusForbidden: {
		Title:   "403 Forbidden",
		Heading: "Forbidden",
		Message: "The requested path is outside the permitted root.",
	},
	http.StatusNotFound: {
		Title:   "404 Not Found",
		Heading: "Not Found",
		Message: "The requested resource was not found on this server.",
	},
	http.StatusMethodNotAllowed: {
		Title:   "405 Method Not Allowed",
		Heading: "Method Not Allowed",
		Message: "The method is not allowed for the requested resource.",
	},
	http.StatusInternalServerError: {
		Title:   "500 Internal Server Error",
		Heading: "Internal Server Error",
		Message: "The server encountered an internal error and was unable to complete your request.",
	},
}

// ErrorResponse builds the error response for statusCode. detail, when
// non-empty, is appended to the canned message; callers pass only generic
// text, never raw OS or process error output. acceptHeader drives content
// negotiation: clients preferring application/json get the same error as a
// JSON object instead of the HTML page.
func ErrorResponse(statusCode int, detail string, acceptHeader string) *http1.Response {
	resp := http1.NewResponse(statusCode)

	statusText := http.StatusText(statusCode)
	if statusText == "" {
		statusText = "Error"
	}

	if PrefersJSON(acceptHeader) {
		body, err := json.Marshal(ErrorResponseJSON{
			Error: ErrorDetail{StatusCode: statusCode, Message: statusText, Detail: detail},
		})
		if err == nil {
			resp.SetBody(body, "application/json; charset=utf-8")
			resp.SetHeader("Cache-Control", "no-cache, no-store, must-revalidate")
			return resp
		}
		// Marshalling failed; fall through to the HTML page.
	}

	var title, heading, message string
	if msg, ok := defaultHTMLMessages[statusCode]; ok {
		title, heading, message = msg.Title, msg.Heading, msg.Message
	} else {
		title = fmt.Sprintf("%d %s", statusCode, statusText)
		heading = statusText
		message = "The server encountered an error processing your request."
	}
	if detail != "" {
		message = message + " " + html.EscapeString(detail)
	}

	body := fmt.Sprintf(
		"<html><head><title>%s</title></head><body><h1>%s</h1><p>%s</p></body></html>",
		html.EscapeString(title), html.EscapeString(heading), message,
	)
	resp.SetBody([]byte(body), "text/html; charset=utf-8")
	resp.SetHeader("Cache-Control", "no-cache, no-store, must-revalidate")
	return resp
}

// PrefersJSON checks whether the Accept header's most preferred media type is
// application/json. Offers are ranked by q-value, then specificity (concrete
// type beats a wildcard), then original order.
func PrefersJSON(acceptHeaderValue string) bool {
	if acceptHeaderValue == "" {
		return false // Default to HTML
	}

	type offer struct {
		mediaType string
		q         float64
		specific  bool
		order     int
	}
	var offers []offer

	for i, part := range strings.Split(acceptHeaderValue, ",") {
		part = strings.TrimSpace(part)
		mediaType := part
		qValue := 1.0

		if idx := strings.Index(part, ";"); idx != -1 {
			mediaType = strings.TrimSpace(part[:idx])
			for _, param := range strings.Split(part[idx+1:], ";") {
				param = strings.TrimSpace(param)
				if strings.HasPrefix(param, "q=") {
					if q, err := strconv.ParseFloat(param[2:], 64); err == nil && q >= 0 && q <= 1 {
						qValue = q
					} else {
						qValue = 0
					}
					break
				}
			}
		}

		// A media type with q=0 is explicitly refused by the client.
		if qValue > 0 {
			offers = append(offers, offer{
				mediaType: strings.ToLower(mediaType),
				q:         qValue,
				specific:  !strings.HasSuffix(mediaType, "/*") && mediaType != "*/*",
				order:     i,
			})
		}
	}

	if len(offers) == 0 {
		return false
	}

	sort.Slice(offers, func(i, j int) bool {
		if offers[i].q != offers[j].q {
			return offers[i].q > offers[j].q
		}
		if offers[i].specific != offers[j].specific {
			return offers[i].specific
		}
		return offers[i].order < offers[j].order
	})

	return offers[0].mediaType == "application/json"
}
