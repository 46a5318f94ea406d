package logs

import (
	"path/filepath"
	"strings"
)

// typeRules are checked in order; the first substring found in the file name
// decides the type.
var typeRules = []struct {
	needle string
	typ    Type
}{
	{"laravel", TypeSystem},
	{"audit", TypeAudit},
	{"auth", TypeAuth},
	{"debug", TypeDebug},
	{"user", TypeUser},
}

// ClassifyType derives the entry type of a log file from its name.
func ClassifyType(filename string) Type {
	name := strings.ToLower(filepath.Base(filename))
	for _, rule := range typeRules {
		if strings.Contains(name, rule.needle) {
			return rule.typ
		}
	}
	return TypeSystem
}
