package logs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// FileSource reads every regular, non-hidden file of one log directory.
type FileSource struct {
	dir    string
	parser *Parser
	cache  *fileCache
}

type FileSourceOption func(*FileSource) error

// WithLocation sets the zone for timestamps written without an offset.
func WithLocation(loc *time.Location) FileSourceOption {
	return func(s *FileSource) error {
		s.parser.Location = loc
		return nil
	}
}

// WithCache keeps up to size parsed files in memory.
func WithCache(size int) FileSourceOption {
	return func(s *FileSource) error {
		cache, err := newFileCache(size, s.parser)
		if err != nil {
			return err
		}
		s.cache = cache
		return nil
	}
}

func WithFill(fill FillStrategy) FileSourceOption {
	return func(s *FileSource) error {
		s.parser.Fill = fill
		return nil
	}
}

func NewFileSource(dir string, opts ...FileSourceOption) (*FileSource, error) {
	s := &FileSource{dir: dir, parser: NewParser(time.Local)}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *FileSource) Dir() string {
	return s.dir
}

func (s *FileSource) Evict(name string) {
	if s.cache != nil {
		s.cache.Evict(filepath.Join(s.dir, name))
	}
}

type logFile struct {
	name string
	path string
	info fs.FileInfo
}

// files lists the readable log files in name order. A missing directory has
// no files.
func (s *FileSource) files() ([]logFile, error) {
	dirEntries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceRead, err)
	}
	files := make([]logFile, 0, len(dirEntries))
	for _, de := range dirEntries {
		name := de.Name()
		if strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".gz") || !de.Type().IsRegular() {
			continue
		}
		info, err := de.Info()
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSourceRead, err)
		}
		files = append(files, logFile{name: name, path: filepath.Join(s.dir, name), info: info})
	}
	return files, nil
}

func (s *FileSource) Fetch(ctx context.Context, filter Filter) ([]Entry, error) {
	files, err := s.files()
	if err != nil {
		return nil, err
	}
	var out []Entry
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		typ := ClassifyType(f.name)
		if filter.Type != "" && filter.Type != typ {
			continue
		}
		entries, err := s.read(f, typ)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrSourceRead, f.name, err)
		}
		for _, e := range entries {
			if filter.Match(e) {
				out = append(out, e)
			}
		}
	}
	return out, nil
}

func (s *FileSource) read(f logFile, typ Type) ([]Entry, error) {
	if s.cache != nil {
		return s.cache.load(f.path, f.info, typ)
	}
	content, err := os.ReadFile(f.path)
	if err != nil {
		return nil, err
	}
	return s.parser.Parse(content, typ, f.info.ModTime()), nil
}

// DeleteOlderThan removes files last modified before cutoff, except those
// whose name contains keep (today's date).
func (s *FileSource) DeleteOlderThan(cutoff time.Time, keep string) (int, error) {
	files, err := s.files()
	if err != nil {
		return 0, err
	}
	deleted := 0
	for _, f := range files {
		if !f.info.ModTime().Before(cutoff) || strings.Contains(f.name, keep) {
			continue
		}
		if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return deleted, fmt.Errorf("%w: %s: %v", ErrSourceRead, f.name, err)
		}
		s.Evict(f.name)
		deleted++
	}
	return deleted, nil
}
