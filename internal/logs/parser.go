package logs

import (
	"encoding/json"
	"io"
	"regexp"
	"strings"
	"time"
)

var (
	entryPattern = regexp.MustCompile(`\[(\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}:\d{2}(?:\.\d+)?(?:Z|[+-]\d{2}:?\d{2})?)\]`)
	levelPattern = regexp.MustCompile(`(?i)(emergency|alert|critical|error|warning|notice|info|debug)`)
	// user_id: 42, "user_id":42, email=a@b.c, user_id[42]
	userPattern = regexp.MustCompile(`(?i)\b(?:user_id|email)["']?\s*(?:=>|[:=])\s*["']?([^"',\s}\])]+)|\b(?:user_id|email)\[([^\]]+)\]`)
	ipPattern   = regexp.MustCompile(`(?i)\b(?:ip_address|ip)["']?\s*(?:=>|[:=])\s*["']?(\d{1,3}(?:\.\d{1,3}){3})|\b(?:ip_address|ip)\[(\d{1,3}(?:\.\d{1,3}){3})\]`)
	// channel.LEVEL: message, as written by the application logger
	structuredPattern = regexp.MustCompile(`^([\w-]+)\.([A-Za-z]+):[ \t]*`)
)

var timestampLayouts = []string{
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04:05",
}

// rawEntry is a timestamp and everything up to the next timestamp.
type rawEntry struct {
	timestamp string
	body      string
	offset    int // offset of the opening bracket within the parsed chunk
}

func splitEntries(content []byte) []rawEntry {
	locs := entryPattern.FindAllSubmatchIndex(content, -1)
	entries := make([]rawEntry, 0, len(locs))
	for i, loc := range locs {
		end := len(content)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		entries = append(entries, rawEntry{
			timestamp: string(content[loc[2]:loc[3]]),
			body:      string(content[loc[1]:end]),
			offset:    loc[0],
		})
	}
	return entries
}

func parseTimestamp(value string, loc *time.Location) (time.Time, bool) {
	if len(value) > 10 && value[10] == ' ' {
		value = value[:10] + "T" + value[11:]
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func detectLevel(body string) Level {
	if m := levelPattern.FindStringSubmatch(body); m != nil {
		return Level(strings.ToLower(m[1]))
	}
	return LevelInfo
}

// detectUsers returns every distinct user_id or email value, in order of
// appearance, joined with " | ".
func detectUsers(body string) string {
	var users []string
	seen := make(map[string]struct{})
	for _, m := range userPattern.FindAllStringSubmatch(body, -1) {
		value := m[1]
		if value == "" {
			value = m[2]
		}
		if _, ok := seen[value]; ok || value == "" {
			continue
		}
		seen[value] = struct{}{}
		users = append(users, value)
	}
	if len(users) == 0 {
		return noValue
	}
	return strings.Join(users, " | ")
}

func detectIP(body string) string {
	m := ipPattern.FindStringSubmatch(body)
	if m == nil {
		return noValue
	}
	if m[1] != "" {
		return m[1]
	}
	return m[2]
}

// parseStructured strips a "channel.LEVEL: " prefix and any trailing JSON
// context from the first line of body. ok is false when body is free-form or
// LEVEL is not a known level, as in "config.yaml: loaded".
func parseStructured(body string) (message string, level Level, ok bool) {
	m := structuredPattern.FindStringSubmatchIndex(body)
	if m == nil {
		return "", "", false
	}
	level = Level(strings.ToLower(body[m[4]:m[5]]))
	if !isValidLevel(level) {
		return "", "", false
	}
	rest := body[m[1]:]
	if i := strings.IndexByte(rest, '\n'); i >= 0 {
		rest = rest[:i]
	}
	rest = strings.TrimSpace(rest)
	if i := trailingJSONStart(rest); i >= 0 {
		rest = strings.TrimSpace(rest[:i])
	}
	return rest, level, true
}

// trailingJSONStart finds the first position from which the rest of s is a
// sequence of JSON objects or arrays, like the context and extra blobs a
// structured logger appends.
func trailingJSONStart(s string) int {
	for i := 0; i < len(s); i++ {
		if (s[i] != '{' && s[i] != '[') || (i > 0 && s[i-1] != ' ') {
			continue
		}
		if isJSONTail(s[i:]) {
			return i
		}
	}
	return -1
}

func isJSONTail(s string) bool {
	dec := json.NewDecoder(strings.NewReader(s))
	for {
		var v json.RawMessage
		if err := dec.Decode(&v); err != nil {
			return err == io.EOF
		}
		if len(v) == 0 || (v[0] != '{' && v[0] != '[') {
			return false
		}
	}
}

// Parser turns raw log text into entries. Each extractor is applied to the
// entry body; Fill decides what to do with values no extractor produced.
type Parser struct {
	Location *time.Location
	Fill     FillStrategy
}

// FillStrategy completes an entry after extraction. It returns false to drop
// the entry.
type FillStrategy func(e *Entry, raw rawEntry, fallback time.Time) bool

// DefaultFill dates entries with an unparseable timestamp at the file's
// modification time and drops entries whose body is empty.
func DefaultFill(e *Entry, raw rawEntry, fallback time.Time) bool {
	if strings.TrimSpace(raw.body) == "" {
		return false
	}
	if e.Date.IsZero() {
		e.Date = fallback
	}
	if e.Message == "" {
		e.Message = strings.TrimSpace(raw.body)
	}
	if e.Level == "" {
		e.Level = LevelInfo
	}
	return true
}

func NewParser(loc *time.Location) *Parser {
	if loc == nil {
		loc = time.Local
	}
	return &Parser{Location: loc, Fill: DefaultFill}
}

func (p *Parser) parse(raw rawEntry, typ Type, fallback time.Time) (Entry, bool) {
	e := Entry{
		Type:    typ,
		Level:   detectLevel(raw.body),
		User:    detectUsers(raw.body),
		IP:      detectIP(raw.body),
		Details: strings.TrimSpace(raw.body),
	}
	if t, ok := parseTimestamp(raw.timestamp, p.Location); ok {
		e.Date = t
	}
	if message, level, ok := parseStructured(strings.TrimSpace(raw.body)); ok {
		e.Message = message
		if level != "" {
			e.Level = level
		}
	}
	if !p.Fill(&e, raw, fallback) {
		return Entry{}, false
	}
	return e, true
}

// Parse parses a whole chunk of log text.
func (p *Parser) Parse(content []byte, typ Type, fallback time.Time) []Entry {
	raws := splitEntries(content)
	entries := make([]Entry, 0, len(raws))
	for _, raw := range raws {
		if e, ok := p.parse(raw, typ, fallback); ok {
			entries = append(entries, e)
		}
	}
	return entries
}
