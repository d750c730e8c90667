// Package form holds the field values, file handles and flags of one wizard session.
package form

import (
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"permitflow/internal/domain"
)

// File is an uploaded document held in memory for the lifetime of a session.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Size returns the file size in bytes.
func (f *File) Size() int64 { return int64(len(f.Data)) }

// IsPDF reports whether the file is a paginated document.
func (f *File) IsPDF() bool { return f.ContentType == "application/pdf" }

// ReadFile reads an upload, detecting its content type from magic bytes.
// Files over maxBytes or of a type outside domain.AllowedContentTypes are rejected.
func ReadFile(name string, r io.Reader, maxBytes int64) (*File, error) {
	limited := io.LimitReader(r, maxBytes+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("reading upload: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return nil, domain.ErrFileTooLarge
	}
	sniff := data
	if len(sniff) > 512 {
		sniff = sniff[:512]
	}
	contentType := http.DetectContentType(sniff)
	if _, ok := domain.AllowedContentTypes[contentType]; !ok {
		return nil, domain.ErrUnsupportedFileType
	}
	return &File{Name: filepath.Base(name), ContentType: contentType, Data: data}, nil
}

// FileInfo is the serializable summary of an attached file.
type FileInfo struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// Snapshot is a point-in-time copy of the form, safe to serialize.
type Snapshot struct {
	Values map[string]string   `json:"values"`
	Flags  map[string]bool     `json:"flags"`
	Files  map[string]FileInfo `json:"files"`
}

// Form is the state store for one application. It is safe for concurrent use.
type Form struct {
	mu     sync.RWMutex
	values map[string]string
	flags  map[string]bool
	files  map[string]*File
}

// New creates an empty Form.
func New() *Form {
	return &Form{
		values: make(map[string]string),
		flags:  make(map[string]bool),
		files:  make(map[string]*File),
	}
}

// Set stores a scalar value.
func (f *Form) Set(key, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[key] = value
}

// SetIfEmpty stores value only when the field is currently blank. It reports whether it wrote.
func (f *Form) SetIfEmpty(key, value string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if strings.TrimSpace(f.values[key]) != "" {
		return false
	}
	f.values[key] = value
	return true
}

// Value returns the raw value of a scalar field.
func (f *Form) Value(key string) string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.values[key]
}

// SetFlag stores a boolean flag.
func (f *Form) SetFlag(key string, v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flags[key] = v
}

// Flag returns a boolean flag; unset flags are false.
func (f *Form) Flag(key string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.flags[key]
}

// SetFile attaches a file under a field name, replacing any previous file.
func (f *Form) SetFile(key string, file *File) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[key] = file
}

// RemoveFile detaches the file stored under key.
func (f *Form) RemoveFile(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.files, key)
}

// File returns the file stored under key, or nil.
func (f *Form) File(key string) *File {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.files[key]
}

// HasFile reports whether a file is attached under key.
func (f *Form) HasFile(key string) bool {
	return f.File(key) != nil
}

// ValueKeys returns the keys of all scalar values, sorted.
func (f *Form) ValueKeys() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return sortedKeys(f.values)
}

// FlagKeys returns the keys of all flags, sorted.
func (f *Form) FlagKeys() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return sortedKeys(f.flags)
}

// FileKeys returns the keys of all attached files, sorted.
func (f *Form) FileKeys() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return sortedKeys(f.files)
}

// Snapshot copies the current state.
func (f *Form) Snapshot() Snapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	s := Snapshot{
		Values: make(map[string]string, len(f.values)),
		Flags:  make(map[string]bool, len(f.flags)),
		Files:  make(map[string]FileInfo, len(f.files)),
	}
	for k, v := range f.values {
		s.Values[k] = v
	}
	for k, v := range f.flags {
		s.Flags[k] = v
	}
	for k, file := range f.files {
		s.Files[k] = FileInfo{Name: file.Name, ContentType: file.ContentType, Size: file.Size()}
	}
	return s
}

// ParseFlag interprets the string forms a flag may arrive in.
func ParseFlag(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
