package publish

import (
	"bytes"
	"io"
	"path/filepath"
	"strings"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/html"
	"github.com/tdewolff/minify/v2/js"
	"github.com/tdewolff/minify/v2/json"
	"github.com/tdewolff/minify/v2/svg"
)

var mediaTypes = map[string]string{
	".html": "text/html",
	".css":  "text/css",
	".js":   "application/javascript",
	".mjs":  "application/javascript",
	".json": "application/json",
	".svg":  "image/svg+xml",
}

// Minifier shrinks text assets while they are copied.
type Minifier struct {
	m *minify.M
}

// NewMinifier returns a Minifier for html, css, js, json and svg.
func NewMinifier() *Minifier {
	m := minify.New()
	m.Add("text/html", &html.Minifier{KeepDocumentTags: true, KeepEndTags: true, KeepQuotes: true})
	m.AddFunc("text/css", css.Minify)
	m.AddFunc("application/javascript", js.Minify)
	m.AddFunc("application/json", json.Minify)
	m.AddFunc("image/svg+xml", svg.Minify)
	return &Minifier{m: m}
}

// Handles reports whether files named like path are minified.
func (mf *Minifier) Handles(path string) bool {
	_, ok := mediaTypes[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Copy writes the minified contents of r to w. Input the minifier rejects is
// copied unchanged.
func (mf *Minifier) Copy(w io.Writer, r io.Reader, path string) (int64, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	out, err := mf.m.Bytes(mediaTypes[strings.ToLower(filepath.Ext(path))], src)
	if err != nil {
		out = src
	}
	n, err := io.Copy(w, bytes.NewReader(out))
	return n, err
}
