package registry

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"sync"
	"time"

	"launchpad/internal/errdefs"
)

type Kind string

const (
	KindCode Kind = "code"
	KindData Kind = "data"
)

// Revision is one entry of a file's digest history.
type Revision struct {
	Timestamp time.Time `json:"timestamp"`
	Digest    string    `json:"digest"`
}

// Module is a tracked member of a Group.
type Module interface {
	Path() string
	Kind() Kind
	Digest() string
	History() []Revision
	Dirty() bool
	Watch() (bool, error)
	ResolveChanges()
	Info() FileInfo
}

// FileInfo is the JSON view of a tracked file.
type FileInfo struct {
	Path    string     `json:"path"`
	Kind    Kind       `json:"kind"`
	Digest  string     `json:"digest"`
	Dirty   bool       `json:"dirty"`
	History []Revision `json:"history"`
	Name    string     `json:"name,omitempty"`
	Objects []string   `json:"objects,omitempty"`
}

// File tracks the content digest of one path. The digest matches the bytes
// read by the last Watch or by construction; dirty is set when Watch sees a
// new digest and cleared only by ResolveChanges.
type File struct {
	mu      sync.Mutex
	path    string
	kind    Kind
	digest  string
	history []Revision
	dirty   bool
	now     func() time.Time
}

func NewFile(path string, kind Kind, isNew bool) (*File, error) {
	absolute, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	digest, err := digestFile(absolute)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errdefs.NotFound("file %s does not exist", absolute)
		}
		return nil, err
	}
	f := &File{
		path:  absolute,
		kind:  kind,
		dirty: isNew,
		now:   time.Now,
	}
	f.digest = digest
	f.history = []Revision{{Timestamp: f.now().UTC(), Digest: digest}}
	return f, nil
}

func (f *File) Path() string { return f.path }
func (f *File) Kind() Kind   { return f.kind }

func (f *File) Digest() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.digest
}

// History returns revisions newest first.
func (f *File) History() []Revision {
	f.mu.Lock()
	defer f.mu.Unlock()
	history := make([]Revision, len(f.history))
	copy(history, f.history)
	return history
}

func (f *File) Dirty() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dirty
}

func (f *File) Watch() (bool, error) {
	digest, err := digestFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, errdefs.NotFound("file %s does not exist", f.path)
		}
		return false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if digest == f.digest {
		return false, nil
	}
	f.history = append([]Revision{{Timestamp: f.now().UTC(), Digest: digest}}, f.history...)
	f.digest = digest
	f.dirty = true
	return true, nil
}

func (f *File) ResolveChanges() {
	f.mu.Lock()
	f.dirty = false
	f.mu.Unlock()
}

func (f *File) markDirty() {
	f.mu.Lock()
	f.dirty = true
	f.mu.Unlock()
}

func (f *File) Info() FileInfo {
	f.mu.Lock()
	defer f.mu.Unlock()
	history := make([]Revision, len(f.history))
	copy(history, f.history)
	return FileInfo{
		Path:    f.path,
		Kind:    f.kind,
		Digest:  f.digest,
		Dirty:   f.dirty,
		History: history,
	}
}

func digestFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
