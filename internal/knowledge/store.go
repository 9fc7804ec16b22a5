package knowledge

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"
)

// Store answers retrieval queries over the static corpus and, optionally,
// the user's uploaded documents.
type Store struct {
	static    []Chunk
	docs      *Documents
	chunkSize int
	logger    *slog.Logger
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithDocuments includes user uploads in retrieval.
func WithDocuments(d *Documents) StoreOption {
	return func(s *Store) { s.docs = d }
}

// WithChunkSize overrides DefaultChunkSize.
func WithChunkSize(n int) StoreOption {
	return func(s *Store) {
		if n > 0 {
			s.chunkSize = n
		}
	}
}

// WithStoreLogger sets the logger used for skipped files.
func WithStoreLogger(l *slog.Logger) StoreOption {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewStore creates a Store with an empty static corpus.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{chunkSize: DefaultChunkSize, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LoadStatic reads every .txt and .md file in dir, in file name order, into
// the static corpus. A missing directory yields an empty corpus. It must be
// called before the Store is shared.
func (s *Store) LoadStatic(ctx context.Context, dir string) error {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		s.logger.Warn("knowledge directory not found, static corpus is empty", "dir", dir)
		s.static = nil
		return nil
	}
	if err != nil {
		return fmt.Errorf("read knowledge directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && SupportedExtension(e.Name()) {
			files = append(files, e.Name())
		}
	}

	perFile := make([][]Chunk, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, name := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			data, err := os.ReadFile(filepath.Join(dir, name))
			if err != nil {
				return fmt.Errorf("read %s: %w", name, err)
			}
			perFile[i] = chunksFor(string(data), ResourceLabel(name), s.chunkSize)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	var corpus []Chunk
	for _, c := range perFile {
		corpus = append(corpus, c...)
	}
	s.static = corpus
	s.logger.Info("knowledge corpus loaded", "files", len(files), "chunks", len(corpus))
	return nil
}

// StaticLen returns the number of static chunks.
func (s *Store) StaticLen() int { return len(s.static) }

// Retrieve returns the best topK chunks for query. User documents are read
// on every call so new uploads are immediately searchable.
func (s *Store) Retrieve(ctx context.Context, query string, topK int, includeUserDocs bool) []Result {
	if len(Normalize(query)) == 0 {
		return nil
	}
	corpus := s.static
	if includeUserDocs && s.docs != nil {
		user := s.docs.Chunks(ctx, s.chunkSize, func(name string, err error) {
			s.logger.Warn("skipping user document", "file", name, "error", err)
		})
		if len(user) > 0 {
			corpus = make([]Chunk, 0, len(s.static)+len(user))
			corpus = append(corpus, s.static...)
			corpus = append(corpus, user...)
		}
	}
	return Retrieve(query, corpus, topK)
}
