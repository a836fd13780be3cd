package snapshot

import (
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
)

// FileFingerprint holds stat-based identity for a file.
type FileFingerprint struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// StatFile creates a FileFingerprint from an on-disk file.
func StatFile(path string) (FileFingerprint, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileFingerprint{}, err
	}
	return FileFingerprint{
		Path:    path,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}

// Key identifies the file contents for in-memory caches.
func (f FileFingerprint) Key() string {
	return f.Path + "|" + strconv.FormatInt(f.Size, 10) + "|" + f.ModTime.UTC().Format(time.RFC3339Nano)
}

// Cache manages a snapshot on disk next to the fingerprint of the variant
// file it was built from:
//
//	{dir}/{name}.vsyn       (snapshot blob)
//	{dir}/{name}.vsyn.meta  (source fingerprint and build parameters)
type Cache struct {
	dir    string
	name   string
	params map[string]string
}

// NewCache creates a snapshot cache for the given directory and name.
func NewCache(dir, name string) *Cache {
	return &Cache{dir: dir, name: name, params: make(map[string]string)}
}

// WithParam records a build parameter the snapshot depends on. A snapshot
// written with a different value, or without it, is not valid.
func (c *Cache) WithParam(key, value string) *Cache {
	c.params["param."+key] = value
	return c
}

// Path returns the snapshot blob path.
func (c *Cache) Path() string {
	return filepath.Join(c.dir, c.name+".vsyn")
}

func (c *Cache) metaPath() string {
	return c.Path() + ".meta"
}

// Valid checks whether the cached snapshot was built from src in the current
// format version.
func (c *Cache) Valid(src FileFingerprint) bool {
	meta, err := c.readMeta()
	if err != nil {
		return false
	}

	checks := []struct{ key, val string }{
		{"source_path", src.Path},
		{"source_size", strconv.FormatInt(src.Size, 10)},
		{"source_modtime", src.ModTime.UTC().Format(time.RFC3339Nano)},
		{"format_version", strconv.Itoa(int(CurrentVersion))},
	}
	for _, ck := range checks {
		if meta[ck.key] != ck.val {
			return false
		}
	}
	for k, v := range c.params {
		if got, ok := meta[k]; !ok || got != v {
			return false
		}
	}

	if _, err := os.Stat(c.Path()); err != nil {
		return false
	}
	return true
}

// Load reads the cached snapshot.
func (c *Cache) Load() (*Snapshot, error) {
	f, err := os.Open(c.Path())
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()

	s, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", c.Path(), err)
	}
	return s, nil
}

// Write stores s and records the fingerprint of its source.
func (c *Cache) Write(s *Snapshot, src FileFingerprint) error {
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return fmt.Errorf("create snapshot directory: %w", err)
	}

	f, err := os.Create(c.Path())
	if err != nil {
		return fmt.Errorf("create snapshot: %w", err)
	}
	if err := Write(f, s); err != nil {
		f.Close()
		os.Remove(c.Path())
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}

	return c.writeMeta(src)
}

// Clear removes the cached files.
func (c *Cache) Clear() {
	os.Remove(c.Path())
	os.Remove(c.metaPath())
}

func (c *Cache) writeMeta(src FileFingerprint) error {
	lines := []string{
		"source_path=" + src.Path,
		"source_size=" + strconv.FormatInt(src.Size, 10),
		"source_modtime=" + src.ModTime.UTC().Format(time.RFC3339Nano),
		"format_version=" + strconv.Itoa(int(CurrentVersion)),
		"created_at=" + time.Now().UTC().Format(time.RFC3339),
	}
	for _, k := range slices.Sorted(maps.Keys(c.params)) {
		lines = append(lines, k+"="+c.params[k])
	}
	lines = append(lines, "")
	return os.WriteFile(c.metaPath(), []byte(strings.Join(lines, "\n")), 0644)
}

func (c *Cache) readMeta() (map[string]string, error) {
	data, err := os.ReadFile(c.metaPath())
	if err != nil {
		return nil, err
	}

	meta := make(map[string]string)
	for _, line := range strings.Split(string(data), "\n") {
		if k, v, ok := strings.Cut(line, "="); ok {
			meta[k] = v
		}
	}
	return meta, nil
}
