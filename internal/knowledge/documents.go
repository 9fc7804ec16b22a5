package knowledge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MaxDocumentSize is the largest accepted upload.
const MaxDocumentSize = 10 << 20

const idSeparator = "__"

var (
	ErrDocumentNotFound   = errors.New("document not found")
	ErrUnsupportedType    = errors.New("unsupported document type")
	ErrDocumentTooLarge   = errors.New("document too large")
	ErrInvalidDocumentID  = errors.New("invalid document id")
	ErrInvalidDocumentRef = errors.New("invalid document name")
)

// allowedExtensions lists the plain-text formats accepted for upload and for
// the static corpus.
var allowedExtensions = map[string]bool{
	".txt": true,
	".md":  true,
}

// Document describes a stored user upload.
type Document struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	UploadedAt time.Time `json:"uploadedAt"`
}

// Documents stores user uploads as <id>__<name> files in one directory.
type Documents struct {
	dir     string
	maxSize int64
}

// NewDocuments creates the upload directory if needed.
func NewDocuments(dir string) (*Documents, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create documents directory: %w", err)
	}
	return &Documents{dir: dir, maxSize: MaxDocumentSize}, nil
}

// Dir returns the upload directory.
func (d *Documents) Dir() string { return d.dir }

// SupportedExtension reports whether name has an accepted extension.
func SupportedExtension(name string) bool {
	return allowedExtensions[strings.ToLower(filepath.Ext(name))]
}

// Save writes r under a fresh id. The file only becomes visible to retrieval
// once it has been fully written.
func (d *Documents) Save(name string, r io.Reader) (Document, error) {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return Document{}, ErrInvalidDocumentRef
	}
	if !SupportedExtension(name) {
		return Document{}, fmt.Errorf("%w: %s", ErrUnsupportedType, filepath.Ext(name))
	}

	tmp, err := os.CreateTemp(d.dir, ".upload-*")
	if err != nil {
		return Document{}, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, io.LimitReader(r, d.maxSize+1))
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return Document{}, fmt.Errorf("write document: %w", err)
	}
	if n > d.maxSize {
		return Document{}, ErrDocumentTooLarge
	}

	doc := Document{ID: uuid.NewString(), Name: name, Size: n, UploadedAt: time.Now().UTC()}
	if err := os.Rename(tmp.Name(), filepath.Join(d.dir, doc.ID+idSeparator+name)); err != nil {
		return Document{}, fmt.Errorf("store document: %w", err)
	}
	return doc, nil
}

// Delete removes the document with the given id.
func (d *Documents) Delete(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrInvalidDocumentID
	}
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return fmt.Errorf("read documents directory: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), id+idSeparator) {
			continue
		}
		if err := os.Remove(filepath.Join(d.dir, e.Name())); err != nil {
			return fmt.Errorf("remove document: %w", err)
		}
		return nil
	}
	return ErrDocumentNotFound
}

// List returns stored documents ordered by upload time, oldest first.
func (d *Documents) List() ([]Document, error) {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return nil, fmt.Errorf("read documents directory: %w", err)
	}
	docs := make([]Document, 0, len(entries))
	for _, e := range entries {
		id, name, ok := parseStoredName(e.Name())
		if e.IsDir() || !ok {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		docs = append(docs, Document{ID: id, Name: name, Size: info.Size(), UploadedAt: info.ModTime().UTC()})
	}
	sort.SliceStable(docs, func(i, j int) bool {
		return docs[i].UploadedAt.Before(docs[j].UploadedAt)
	})
	return docs, nil
}

// Chunks reads and chunks every stored document. Unreadable files are skipped
// and reported through skip.
func (d *Documents) Chunks(ctx context.Context, size int, skip func(name string, err error)) []Chunk {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		if skip != nil {
			skip(d.dir, err)
		}
		return nil
	}

	var out []Chunk
	for _, e := range entries {
		if ctx.Err() != nil {
			return out
		}
		_, name, ok := parseStoredName(e.Name())
		if e.IsDir() || !ok {
			continue
		}
		data, err := os.ReadFile(filepath.Join(d.dir, e.Name()))
		if err != nil {
			if skip != nil {
				skip(e.Name(), err)
			}
			continue
		}
		out = append(out, chunksFor(string(data), UserDocumentLabel(name), size)...)
	}
	return out
}

// UserDocumentLabel is the source label of a chunk from an uploaded document.
func UserDocumentLabel(name string) string {
	return "[Your Document] " + name
}

// ResourceLabel is the source label of a chunk from the static corpus.
func ResourceLabel(file string) string {
	return "[Resource] " + file
}

func parseStoredName(file string) (id, name string, ok bool) {
	id, name, ok = strings.Cut(file, idSeparator)
	if !ok || name == "" || !SupportedExtension(name) {
		return "", "", false
	}
	if _, err := uuid.Parse(id); err != nil {
		return "", "", false
	}
	return id, name, true
}
