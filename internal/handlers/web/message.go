package web

import (
	"fmt"
	"math"
	"time"
)

const (
	MsgInvalidRequest        = "Invalid request. Please try again."
	MsgLoginWrongCredentials = "Invalid email or password."
	MsgLoginUserDisabled     = "This account has been disabled."
	MsgLoginSucceeded        = "Logged in."
	MsgLoggedOut             = "Logged out."
	MsgExportRateLimited     = "Too many exports. Please try again in %s."
	MsgLogsCleared           = "Removed %d audit records and %d log files older than %d days."
	MsgDaysRequired          = "is required and must be an integer"
	MsgImpersonationStarted  = "You are now acting as %s."
	MsgImpersonationStopped  = "Impersonation stopped."
)

func formatDuration(d time.Duration) string {
	plural := func(v int) string {
		if v == 1 {
			return ""
		}
		return "s"
	}

	d = time.Duration(math.Ceil(d.Seconds())) * time.Second
	if d < time.Minute {
		secs := int(d.Seconds())
		if secs <= 1 {
			return "a second"
		}
		return fmt.Sprintf("%d seconds", secs)
	}

	minutes := int(math.Ceil(d.Minutes()))
	if d < time.Hour {
		if minutes == 1 {
			return "a minute"
		}
		return fmt.Sprintf("%d minutes", minutes)
	}

	hours := int(d.Hours())
	mins := int(math.Ceil(d.Minutes())) % 60
	if mins == 0 {
		return fmt.Sprintf("%d hour%s", hours, plural(hours))
	}
	return fmt.Sprintf("%d hour%s %d minute%s", hours, plural(hours), mins, plural(mins))
}
