// Package publish copies build output into the root of the publish branch.
package publish

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
)

// Layout describes where the build tool writes its output.
type Layout struct {
	DistDir   string // e.g. "dist"
	EntryFile string // e.g. "index.html", relative to DistDir
	AssetsDir string // e.g. "assets", relative to DistDir
}

// Manifest lists what a Copy wrote, as paths relative to the publish root.
type Manifest struct {
	Files []string
	Bytes int64
}

// Publisher copies build output into a publish root.
type Publisher struct {
	layout   Layout
	minifier *Minifier
}

// New creates a Publisher. A nil minifier copies files verbatim.
func New(layout Layout, minifier *Minifier) *Publisher {
	return &Publisher{layout: layout, minifier: minifier}
}

// Layout returns the build output layout.
func (p *Publisher) Layout() Layout {
	return p.layout
}

// Copy copies the entry file to root/EntryFile and every regular file of the
// assets directory to root/AssetsDir. Relative layout paths are resolved
// against root. A missing entry file or assets directory is an error.
func (p *Publisher) Copy(root string) (*Manifest, error) {
	dist := p.layout.DistDir
	if !filepath.IsAbs(dist) {
		dist = filepath.Join(root, dist)
	}

	manifest := &Manifest{}

	n, err := p.copyFile(filepath.Join(dist, p.layout.EntryFile), filepath.Join(root, p.layout.EntryFile))
	if err != nil {
		return nil, fmt.Errorf("copy %s: %w", p.layout.EntryFile, err)
	}
	manifest.add(p.layout.EntryFile, n)

	srcAssets := filepath.Join(dist, p.layout.AssetsDir)
	dstAssets := filepath.Join(root, p.layout.AssetsDir)
	if err := os.MkdirAll(dstAssets, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", p.layout.AssetsDir, err)
	}

	entries, err := os.ReadDir(srcAssets)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", srcAssets, err)
	}
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		n, err := p.copyFile(filepath.Join(srcAssets, entry.Name()), filepath.Join(dstAssets, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("copy asset %s: %w", entry.Name(), err)
		}
		manifest.add(filepath.ToSlash(filepath.Join(p.layout.AssetsDir, entry.Name())), n)
	}

	sort.Strings(manifest.Files)
	return manifest, nil
}

func (m *Manifest) add(path string, n int64) {
	m.Files = append(m.Files, path)
	m.Bytes += n
}

func (p *Publisher) copyFile(src, dst string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return 0, err
	}
	out, err := os.Create(dst)
	if err != nil {
		return 0, err
	}

	var n int64
	if p.minifier != nil && p.minifier.Handles(src) {
		n, err = p.minifier.Copy(out, in, src)
	} else {
		n, err = io.Copy(out, in)
	}
	if err != nil {
		out.Close()
		return 0, err
	}
	return n, out.Close()
}
