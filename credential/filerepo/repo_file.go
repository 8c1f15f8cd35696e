// Package filerepo keeps credentials in a single JSON document on disk so a
// session survives between runs of the CLI.
package filerepo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/jrsteele09/go-signin/credential"
	signinerrors "github.com/jrsteele09/go-signin/internal/errors"
)

const (
	// FileName is the document name inside the data folder.
	FileName = "credentials.json"

	filePerm   = 0o600
	folderPerm = 0o700
)

var _ credential.Repo = (*Repo)(nil)

type document struct {
	DefaultID   string                            `json:"default_id,omitempty"`
	Credentials map[string]*credential.Credential `json:"credentials"`
}

// Repo reads the document on every call and rewrites it atomically on every change.
type Repo struct {
	path string
	mu   sync.RWMutex
}

// New returns a Repo storing its document at folder/FileName. The folder is created on first write.
func New(folder string) *Repo {
	return &Repo{path: filepath.Join(folder, FileName)}
}

// Path returns the location of the JSON document.
func (r *Repo) Path() string {
	return r.path
}

func (r *Repo) Upsert(_ context.Context, c *credential.Credential) error {
	if c == nil || c.ID == "" {
		return signinerrors.ErrInvalidID
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, err := r.load()
	if err != nil {
		return err
	}
	doc.Credentials[c.ID] = c.Clone()
	return r.save(doc)
}

func (r *Repo) Get(_ context.Context, id string) (*credential.Credential, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, err := r.load()
	if err != nil {
		return nil, err
	}
	c, ok := doc.Credentials[id]
	if !ok {
		return nil, signinerrors.ErrNotFound
	}
	return c, nil
}

func (r *Repo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, err := r.load()
	if err != nil {
		return err
	}
	if _, ok := doc.Credentials[id]; !ok {
		return signinerrors.ErrNotFound
	}
	delete(doc.Credentials, id)
	return r.save(doc)
}

func (r *Repo) DefaultID(_ context.Context) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, err := r.load()
	if err != nil {
		return "", err
	}
	if doc.DefaultID == "" {
		return "", signinerrors.ErrNotFound
	}
	return doc.DefaultID, nil
}

func (r *Repo) SetDefaultID(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, err := r.load()
	if err != nil {
		return err
	}
	doc.DefaultID = id
	return r.save(doc)
}

func (r *Repo) load() (*document, error) {
	doc := &document{Credentials: map[string]*credential.Credential{}}
	data, err := os.ReadFile(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		return doc, nil
	}
	if err != nil {
		return nil, fmt.Errorf("[filerepo load] read %s: %w", r.path, err)
	}
	if len(data) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("[filerepo load] %w: %v", signinerrors.ErrStoreCorrupted, err)
	}
	if doc.Credentials == nil {
		doc.Credentials = map[string]*credential.Credential{}
	}
	return doc, nil
}

// save writes to a temporary file in the same folder and renames it over the document.
func (r *Repo) save(doc *document) error {
	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, folderPerm); err != nil {
		return fmt.Errorf("[filerepo save] create folder: %w", err)
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("[filerepo save] marshal: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".credentials-*.json")
	if err != nil {
		return fmt.Errorf("[filerepo save] temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(filePerm); err != nil {
		tmp.Close()
		return fmt.Errorf("[filerepo save] chmod: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("[filerepo save] write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("[filerepo save] close: %w", err)
	}
	if err := os.Rename(tmp.Name(), r.path); err != nil {
		return fmt.Errorf("[filerepo save] rename: %w", err)
	}
	return nil
}
