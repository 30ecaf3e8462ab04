// Package filesystem indexes documents from a local directory tree. Text,
// Markdown, HTML and Word files are converted to plain text by the
// normaliser registry.
// Creating or writing a file plays the role of publishing a page; removing
// or renaming one plays the role of unpublishing it.
package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/context-search/internal/core/domain"
	"github.com/custodia-labs/context-search/internal/core/ports/driven"
	"github.com/custodia-labs/context-search/internal/logger"
	"github.com/custodia-labs/context-search/internal/normalisers"
)

// ErrClosed is returned when watching with a closed connector.
var ErrClosed = errors.New("filesystem: connector closed")

// ChangeType describes what happened to a file.
type ChangeType int

const (
	// ChangePublished means the file was created or written.
	ChangePublished ChangeType = iota
	// ChangeUnpublished means the file was removed or renamed away.
	ChangeUnpublished
)

func (t ChangeType) String() string {
	if t == ChangeUnpublished {
		return "unpublished"
	}
	return "published"
}

// Change is a single watched file event.
// Document is populated for ChangePublished only.
type Change struct {
	Type     ChangeType
	Ref      string
	Document domain.SourceDocument
}

// Connector reads a file or directory tree.
type Connector struct {
	rootPath    string
	pageType    string
	normalisers driven.NormaliserRegistry

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	closed  bool
}

// Option configures a Connector.
type Option func(*Connector)

// WithPageType sets the page type of every document. By default the page
// type is the file extension without the dot.
func WithPageType(pageType string) Option {
	return func(c *Connector) {
		c.pageType = pageType
	}
}

// WithNormalisers replaces the default normaliser registry.
func WithNormalisers(registry driven.NormaliserRegistry) Option {
	return func(c *Connector) {
		c.normalisers = registry
	}
}

// New creates a connector rooted at rootPath.
func New(rootPath string, opts ...Option) *Connector {
	c := &Connector{rootPath: rootPath, normalisers: normalisers.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Root returns the configured root path.
func (c *Connector) Root() string {
	return c.rootPath
}

// FullSync emits every visible supported file under the root. The document
// channel closes when the walk ends; walk errors go to the error channel,
// which closes afterwards.
func (c *Connector) FullSync(ctx context.Context) (<-chan domain.SourceDocument, <-chan error) {
	docs := make(chan domain.SourceDocument)
	errs := make(chan error, 1)

	go func() {
		defer close(errs)
		defer close(docs)

		info, err := os.Stat(c.rootPath)
		if err != nil {
			errs <- fmt.Errorf("root path error: %w", err)
			return
		}

		emit := func(path string) error {
			doc, ok, err := c.load(path)
			if err != nil || !ok {
				return err
			}
			select {
			case docs <- doc:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if !info.IsDir() {
			if err := emit(c.rootPath); err != nil {
				errs <- err
			}
			return
		}

		err = filepath.WalkDir(c.rootPath, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if path != c.rootPath && isHidden(d.Name()) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				return nil
			}
			return emit(path)
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			errs <- err
		}
	}()

	return docs, errs
}

// Watch reports changes under the root until ctx is cancelled. New
// subdirectories are watched as they appear.
func (c *Connector) Watch(ctx context.Context) (<-chan Change, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}

	info, err := os.Stat(c.rootPath)
	if err != nil {
		return nil, fmt.Errorf("root path error: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}

	if info.IsDir() {
		err = addTree(watcher, c.rootPath)
	} else {
		err = watcher.Add(filepath.Dir(c.rootPath))
	}
	if err != nil {
		watcher.Close() //nolint:errcheck
		return nil, fmt.Errorf("watching %s: %w", c.rootPath, err)
	}
	c.watcher = watcher

	changes := make(chan Change)
	go func() {
		defer close(changes)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Has(fsnotify.Create) {
					if fi, err := os.Stat(event.Name); err == nil && fi.IsDir() && !c.hidden(event.Name) {
						if err := addTree(watcher, event.Name); err != nil {
							logger.Warn("watch %s: %v", event.Name, err)
						}
						continue
					}
				}
				change := c.handleFsEvent(event)
				if change == nil {
					continue
				}
				select {
				case changes <- *change:
				case <-ctx.Done():
					return
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("watch error: %v", err)
			}
		}
	}()

	return changes, nil
}

// Close stops watching. It is safe to call more than once.
func (c *Connector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	if c.watcher != nil {
		return c.watcher.Close()
	}
	return nil
}

// handleFsEvent converts a watcher event into a change, or nil when the
// event is irrelevant.
func (c *Connector) handleFsEvent(event fsnotify.Event) *Change {
	if c.hidden(event.Name) || !c.inScope(event.Name) {
		return nil
	}

	switch {
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		if !c.normalisers.Supports(detectMIMEType(event.Name)) {
			return nil
		}
		return &Change{Type: ChangeUnpublished, Ref: SourceRef(event.Name)}

	case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
		doc, ok, err := c.load(event.Name)
		if err != nil {
			logger.Warn("reading %s: %v", event.Name, err)
			return nil
		}
		if !ok {
			return nil
		}
		return &Change{Type: ChangePublished, Ref: doc.Ref, Document: doc}
	}

	return nil
}

// hidden applies isHidden to path relative to the root.
func (c *Connector) hidden(path string) bool {
	if rel, err := filepath.Rel(c.rootPath, path); err == nil {
		path = rel
	}
	return isHidden(path)
}

// inScope limits events of a single-file root to that file.
func (c *Connector) inScope(path string) bool {
	info, err := os.Stat(c.rootPath)
	if err != nil || info.IsDir() {
		return true
	}
	return SourceRef(path) == SourceRef(c.rootPath)
}

// load reads path into a source document. ok is false for directories and
// files no normaliser supports.
func (c *Connector) load(path string) (doc domain.SourceDocument, ok bool, err error) {
	info, err := os.Stat(path)
	if err != nil {
		return doc, false, err
	}
	mimeType := detectMIMEType(path)
	if info.IsDir() || !c.normalisers.Supports(mimeType) {
		return doc, false, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return doc, false, fmt.Errorf("reading %s: %w", path, err)
	}

	result, err := c.normalisers.Normalise(context.Background(), &domain.RawDocument{
		URI:      path,
		MIMEType: mimeType,
		Content:  content,
	})
	if err != nil {
		return doc, false, fmt.Errorf("normalising %s: %w", path, err)
	}

	ref := SourceRef(path)
	pageType := c.pageType
	if pageType == "" {
		pageType = strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	}

	return domain.SourceDocument{
		Ref:   ref,
		Title: titleOrFilename(result.Title, path),
		URL:   "file://" + ref,
		Type:  pageType,
		Text:  result.Text,
	}, true, nil
}

// SourceRef is the absolute, cleaned form of path. A file:// URL is
// converted to its path first.
func SourceRef(path string) string {
	path = strings.TrimPrefix(path, "file://")
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

// titleOrFilename falls back to the file name without extension.
func titleOrFilename(title, path string) string {
	if title != "" {
		return title
	}
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func addTree(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && isHidden(d.Name()) {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}

// fallbackMIMETypes covers extensions the platform registry often lacks.
var fallbackMIMETypes = map[string]string{
	".txt":      "text/plain",
	".md":       "text/markdown",
	".markdown": "text/markdown",
	".html":     "text/html",
	".htm":      "text/html",
	".docx":     "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".rst":      "text/x-rst",
	".go":       "text/x-go",
	".py":       "text/x-python",
	".rs":       "text/x-rust",
	".ts":       "text/typescript",
	".yaml":     "text/yaml",
	".yml":      "text/yaml",
	".toml":     "text/toml",
	".sh":       "text/x-shellscript",
	".sql":      "text/x-sql",
}

// detectMIMEType guesses the type from the extension without any charset
// parameter. Files without an extension are treated as plain text.
func detectMIMEType(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		return "text/plain"
	}
	if t, ok := fallbackMIMETypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		if i := strings.Index(t, ";"); i >= 0 {
			t = t[:i]
		}
		return strings.TrimSpace(t)
	}
	return "application/octet-stream"
}

// isHidden reports whether any element of path starts with a dot.
// "." and ".." are not hidden.
func isHidden(path string) bool {
	for _, part := range strings.FieldsFunc(path, func(r rune) bool { return r == '/' || r == filepath.Separator }) {
		if part != "." && part != ".." && strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}
