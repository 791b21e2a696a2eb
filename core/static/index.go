package static

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"
)

// Entry is one servable file.
type Entry struct {
	Route    string
	MimeType string
	Content  []byte
}

// Index is the read-only result of Load.
type Index struct {
	base    string
	entries []Entry
	byRoute map[string]int
}

// Base returns the cleaned base path.
func (i *Index) Base() string { return i.base }

// Len returns the number of routes, index aliases included.
func (i *Index) Len() int { return len(i.entries) }

// Entries returns all entries sorted by route.
func (i *Index) Entries() []Entry { return i.entries }

// Lookup returns the entry mounted at route.
func (i *Index) Lookup(route string) (Entry, bool) {
	n, ok := i.byRoute[route]
	if !ok {
		return Entry{}, false
	}
	return i.entries[n], true
}

// Option configures Load.
type Option func(*loader)

type loader struct {
	concurrency int
}

// WithConcurrency limits the number of files read in parallel.
func WithConcurrency(n int) Option {
	return func(l *loader) {
		if n > 0 {
			l.concurrency = n
		}
	}
}

// Load indexes the directory dir under base.
func Load(ctx context.Context, dir, base string, opts ...Option) (*Index, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("static: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotDirectory, dir)
	}
	return LoadFS(ctx, os.DirFS(dir), base, opts...)
}

// LoadFS indexes fsys under base.
func LoadFS(ctx context.Context, fsys fs.FS, base string, opts ...Option) (*Index, error) {
	if base == "" || base[0] != '/' {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBase, base)
	}
	base = path.Clean(base)

	l := &loader{concurrency: runtime.GOMAXPROCS(0) * 2}
	for _, opt := range opts {
		opt(l)
	}

	var files []string
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			files = append(files, p)
		}
		return ctx.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("static: walk: %w", err)
	}

	contents := make([][]byte, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)
	for i, p := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			b, err := fs.ReadFile(fsys, p)
			if err != nil {
				return fmt.Errorf("static: read %s: %w", p, err)
			}
			contents[i] = b
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	idx := &Index{base: base, byRoute: make(map[string]int, len(files))}
	for i, p := range files {
		e := Entry{
			Route:    path.Join(base, p),
			MimeType: MimeType(p),
			Content:  contents[i],
		}
		idx.add(e)
	}

	// index files answer for their directory; index.html wins over index.htm
	for _, name := range []string{"index.html", "index.htm"} {
		for i, p := range files {
			if path.Base(p) != name {
				continue
			}
			e := Entry{
				Route:    path.Join(base, path.Dir(p)),
				MimeType: MimeType(p),
				Content:  contents[i],
			}
			if _, taken := idx.byRoute[e.Route]; !taken {
				idx.add(e)
			}
		}
	}

	sort.Slice(idx.entries, func(a, b int) bool { return idx.entries[a].Route < idx.entries[b].Route })
	for n, e := range idx.entries {
		idx.byRoute[e.Route] = n
	}

	return idx, nil
}

func (i *Index) add(e Entry) {
	i.byRoute[e.Route] = len(i.entries)
	i.entries = append(i.entries, e)
}
