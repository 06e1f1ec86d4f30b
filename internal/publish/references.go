package publish

import (
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// MissingReferences parses the HTML entry file at root/entry and returns the
// local script, stylesheet, image and icon references that do not exist under
// root. Absolute URLs, protocol-relative URLs and fragments are skipped.
//
// Root-absolute paths ("/assets/x.js") are resolved against root as well,
// though they break on project sites served from /<repo>/.
func MissingReferences(root, entry string) ([]string, error) {
	f, err := os.Open(filepath.Join(root, entry))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var missing []string
	check := func(ref string) {
		local, ok := localPath(ref)
		if !ok || seen[local] {
			return
		}
		seen[local] = true
		if _, err := os.Stat(filepath.Join(root, filepath.FromSlash(local))); err != nil {
			missing = append(missing, ref)
		}
	}

	doc.Find("script[src], img[src]").Each(func(_ int, s *goquery.Selection) {
		if ref, ok := s.Attr("src"); ok {
			check(ref)
		}
	})
	doc.Find("link[href]").Each(func(_ int, s *goquery.Selection) {
		rel := strings.ToLower(s.AttrOr("rel", ""))
		if strings.Contains(rel, "stylesheet") || strings.Contains(rel, "icon") || strings.Contains(rel, "modulepreload") {
			check(s.AttrOr("href", ""))
		}
	})

	return missing, nil
}

// localPath turns a reference into a slash path relative to the site root.
func localPath(ref string) (string, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "#") || strings.HasPrefix(ref, "//") {
		return "", false
	}
	u, err := url.Parse(ref)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return "", false
	}
	p := strings.TrimPrefix(path.Clean("/"+u.Path), "/")
	if p == "" {
		return "", false
	}
	return p, true
}
