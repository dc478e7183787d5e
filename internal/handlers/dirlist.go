package handlers

import (
	"fmt"
	"html"
	"net/url"
	"os"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"

	"example.com/tinyhttpd/internal/http1"
	"example.com/tinyhttpd/internal/logger"
)

// DirListing renders directory index pages.
type DirListing struct {
	log        *logger.Logger
	showHidden bool
}

// NewDirListing creates the directory listing handler. When showHidden is
// false, dot entries are omitted from listings.
func NewDirListing(lg *logger.Logger, showHidden bool) *DirListing {
	return &DirListing{log: lg, showHidden: showHidden}
}

// Respond produces the listing for the directory at fsPath. webPath is the
// decoded URL path of the request and is used both in the page heading and as
// the base for entry links; each link href is the entry name percent-encoded
// and joined to it. Entries are sorted by name and directories carry a
// trailing slash.
func (h *DirListing) Respond(fsPath string, webPath string) (*http1.Response, error) {
	entries, err := os.ReadDir(fsPath)
	if err != nil {
		return nil, fmt.Errorf("could not read directory %s: %w", fsPath, err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	base := webPath
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	escapedWebPath := html.EscapeString(webPath)

	var sb strings.Builder
	sb.WriteString("<html>\n<head><title>Directory listing for ")
	sb.WriteString(escapedWebPath)
	sb.WriteString("</title></head>\n<body>\n<h2>Directory listing for ")
	sb.WriteString(escapedWebPath)
	sb.WriteString("</h2>\n<hr>\n<ul>\n")

	if webPath != "/" {
		sb.WriteString("<li><a href=\"../\">../</a></li>\n")
	}

	for _, entry := range entries {
		name := entry.Name()
		if !h.showHidden && strings.HasPrefix(name, ".") {
			continue
		}

		href := base + url.PathEscape(name)
		display := name
		var sizeNote string
		if entry.IsDir() {
			href += "/"
			display += "/"
		} else if fi, err := entry.Info(); err == nil {
			sizeNote = " (" + humanize.Bytes(uint64(fi.Size())) + ")"
		} else {
			h.log.Warn("Could not stat directory entry for listing", logger.LogFields{
				"dir":   fsPath,
				"entry": name,
				"error": err.Error(),
			})
		}

		sb.WriteString(fmt.Sprintf("<li><a href=\"%s\">%s</a>%s</li>\n",
			html.EscapeString(href), html.EscapeString(display), html.EscapeString(sizeNote)))
	}

	sb.WriteString("</ul>\n<hr>\n</body>\n</html>\n")

	resp := http1.NewResponse(200)
	resp.SetBody([]byte(sb.String()), "text/html; charset=utf-8")
	return resp, nil
}
