// Package docs renders the AsciiDoc API reference served at /docs.
package docs

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/bytesparadise/libasciidoc"
	"github.com/bytesparadise/libasciidoc/pkg/configuration"
)

// DefaultDoc is the document /docs renders when none is named.
const DefaultDoc = "api.adoc"

//go:embed *.adoc
var embedded embed.FS

// Doc is one rendered document. HTML is a fragment without page chrome.
type Doc struct {
	Name  string
	Title string
	HTML  string
}

// Service renders documents from an fs.FS once and keeps the result.
type Service struct {
	files    fs.FS
	mu       sync.RWMutex
	rendered map[string]Doc
}

// NewService serves the documents compiled into the binary.
func NewService() *Service {
	return NewServiceFS(embedded)
}

// NewServiceFS serves the .adoc files at the root of files.
func NewServiceFS(files fs.FS) *Service {
	return &Service{files: files, rendered: make(map[string]Doc)}
}

// Render returns the named document. Only the base name is used, and only
// .adoc files are served; anything else is fs.ErrNotExist.
func (s *Service) Render(ctx context.Context, name string) (Doc, error) {
	name = path.Base(name)
	if path.Ext(name) != ".adoc" {
		return Doc{}, fmt.Errorf("doc %q: %w", name, fs.ErrNotExist)
	}

	s.mu.RLock()
	doc, ok := s.rendered[name]
	s.mu.RUnlock()
	if ok {
		return doc, nil
	}
	if err := ctx.Err(); err != nil {
		return Doc{}, err
	}

	src, err := fs.ReadFile(s.files, name)
	if err != nil {
		return Doc{}, fmt.Errorf("read doc %s: %w", name, err)
	}

	var out bytes.Buffer
	// No table of contents: the /docs page shell carries the navigation.
	meta, err := libasciidoc.Convert(bytes.NewReader(src), &out, configuration.NewConfiguration(
		configuration.WithHeaderFooter(false),
	))
	if err != nil {
		return Doc{}, fmt.Errorf("render doc %s: %w", name, err)
	}

	doc = Doc{Name: name, Title: meta.Title, HTML: out.String()}
	if doc.Title == "" {
		doc.Title = strings.TrimSuffix(name, ".adoc")
	}

	s.mu.Lock()
	s.rendered[name] = doc
	s.mu.Unlock()
	return doc, nil
}

// List returns the names of the available documents, sorted.
func (s *Service) List() ([]string, error) {
	names, err := fs.Glob(s.files, "*.adoc")
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}
