package logs

import (
	"bytes"
	"io"
	"os"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/onsell/backoffice/internal/metrics"
)

const checkpointHeadSize = 64

// checkpoint remembers how far a file was parsed. Entries before resumeAt are
// final; the entry starting at resumeAt may still grow and is parsed again on
// the next read. undated indexes the stable entries dated at the file's
// modification time, which move with it.
type checkpoint struct {
	size     int64
	modTime  time.Time
	head     []byte
	stable   []Entry
	undated  []int
	resumeAt int64
	tail     []Entry
}

func (c *checkpoint) entries() []Entry {
	all := make([]Entry, 0, len(c.stable)+len(c.tail))
	all = append(all, c.stable...)
	return append(all, c.tail...)
}

// fileCache keeps parsed entries per file path so that unchanged files are not
// parsed again and appended files are parsed from their last entry onwards.
type fileCache struct {
	mu     sync.Mutex
	parser *Parser
	cache  *lru.Cache[string, *checkpoint]
}

func newFileCache(size int, parser *Parser) (*fileCache, error) {
	cache, err := lru.New[string, *checkpoint](size)
	if err != nil {
		return nil, err
	}
	return &fileCache{parser: parser, cache: cache}, nil
}

func (c *fileCache) Evict(path string) {
	c.cache.Remove(path)
}

func (c *fileCache) Purge() {
	c.cache.Purge()
}

func (c *fileCache) Len() int {
	return c.cache.Len()
}

func (c *fileCache) load(path string, info os.FileInfo, typ Type) ([]Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cp, ok := c.cache.Get(path)
	if ok && cp.size == info.Size() && cp.modTime.Equal(info.ModTime()) {
		metrics.LogCacheHits.WithLabelValues("hit").Inc()
		return cp.entries(), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if ok && info.Size() > cp.size && sameHead(f, cp.head) {
		next, err := c.resume(f, cp, info, typ)
		if err != nil {
			return nil, err
		}
		metrics.LogCacheHits.WithLabelValues("incremental").Inc()
		c.cache.Add(path, next)
		return next.entries(), nil
	}

	metrics.LogCacheHits.WithLabelValues("miss").Inc()
	next, err := c.resume(f, &checkpoint{}, info, typ)
	if err != nil {
		return nil, err
	}
	c.cache.Add(path, next)
	return next.entries(), nil
}

func (c *fileCache) resume(f *os.File, prev *checkpoint, info os.FileInfo, typ Type) (*checkpoint, error) {
	if _, err := f.Seek(prev.resumeAt, io.SeekStart); err != nil {
		return nil, err
	}
	content, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}

	modTime := info.ModTime()
	stable := make([]Entry, len(prev.stable), len(prev.stable)+1)
	copy(stable, prev.stable)
	for _, i := range prev.undated {
		stable[i].Date = modTime
	}
	next := &checkpoint{
		size:     prev.resumeAt + int64(len(content)),
		modTime:  modTime,
		head:     prev.head,
		stable:   stable,
		undated:  append([]int(nil), prev.undated...),
		resumeAt: prev.resumeAt,
	}
	if next.head == nil {
		next.head = readHead(f)
	}

	raws := splitEntries(content)
	if len(raws) == 0 {
		return next, nil
	}
	last := len(raws) - 1
	for _, raw := range raws[:last] {
		e, ok := c.parser.parse(raw, typ, modTime)
		if !ok {
			continue
		}
		if _, dated := parseTimestamp(raw.timestamp, c.parser.Location); !dated {
			next.undated = append(next.undated, len(next.stable))
		}
		next.stable = append(next.stable, e)
	}
	next.resumeAt = prev.resumeAt + int64(raws[last].offset)
	if e, ok := c.parser.parse(raws[last], typ, modTime); ok {
		next.tail = []Entry{e}
	}
	return next, nil
}

func readHead(f *os.File) []byte {
	head := make([]byte, checkpointHeadSize)
	n, _ := f.ReadAt(head, 0)
	return head[:n]
}

// sameHead detects files that were truncated and rewritten between reads.
func sameHead(f *os.File, head []byte) bool {
	current := make([]byte, len(head))
	n, _ := f.ReadAt(current, 0)
	return bytes.Equal(current[:n], head)
}
