package logs

import (
	"encoding/json"
	"time"

	"github.com/onsell/backoffice/params"
)

type Type string

const (
	TypeSystem Type = "system"
	TypeAudit  Type = "audit"
	TypeAuth   Type = "auth"
	TypeDebug  Type = "debug"
	TypeUser   Type = "user"
)

var Types = []Type{TypeSystem, TypeAudit, TypeAuth, TypeDebug, TypeUser}

type Level string

const (
	LevelEmergency Level = "emergency"
	LevelAlert     Level = "alert"
	LevelCritical  Level = "critical"
	LevelError     Level = "error"
	LevelWarning   Level = "warning"
	LevelNotice    Level = "notice"
	LevelInfo      Level = "info"
	LevelDebug     Level = "debug"
)

var Levels = []Level{
	LevelEmergency, LevelAlert, LevelCritical, LevelError,
	LevelWarning, LevelNotice, LevelInfo, LevelDebug,
}

const noValue = "-"

// Entry is one row of the log viewer. It is derived on every read and never
// persisted.
type Entry struct {
	Date    time.Time
	Message string
	User    string
	IP      string
	Type    Type
	Level   Level
	Details string
}

type entryJSON struct {
	Date    string `json:"date"`
	Message string `json:"message"`
	User    string `json:"user"`
	IP      string `json:"ip"`
	Type    Type   `json:"type"`
	Level   Level  `json:"level"`
	Details string `json:"details"`
}

func (e Entry) FormattedDate() string {
	return e.Date.Format(params.LogsTimestampLayout)
}

func (e Entry) MarshalJSON() ([]byte, error) {
	return json.Marshal(entryJSON{
		Date:    e.FormattedDate(),
		Message: e.Message,
		User:    e.User,
		IP:      e.IP,
		Type:    e.Type,
		Level:   e.Level,
		Details: e.Details,
	})
}

func isValidType(t Type) bool {
	for _, v := range Types {
		if v == t {
			return true
		}
	}
	return false
}

func isValidLevel(l Level) bool {
	for _, v := range Levels {
		if v == l {
			return true
		}
	}
	return false
}
