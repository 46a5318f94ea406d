package params

import "time"

const (
	ServerBodyLimit            = 1048576 // 1 MiB
	ServerIdleTimeout          = 30 * time.Second
	ServerReadTimeout          = 10 * time.Second
	ServerWriteTimeout         = 60 * time.Second // exports stream the whole result set
	RoleSnapshotKeyPrefix      = "rs:"
	RoleSnapshotExpiration     = 7 * 24 * time.Hour // pending role snapshots outlive any session
	CSRFTokenExpiration        = 2 * time.Hour
	HealthCheckServerAddr      = ":3001" // health check server address
	LogsDefaultPerPage         = 15
	LogsMinPerPage             = 10
	LogsMaxPerPage             = 100
	LogsMinRetentionDays       = 1
	LogsMaxRetentionDays       = 365
	LogsDateLayout             = "2006-01-02"
	LogsTimestampLayout        = "2006-01-02 15:04:05"
	LogsExportBurst            = 3
	LogsExportLimiterCacheSize = 1024
	LogsWatcherDebounce        = 250 * time.Millisecond
	ImpersonationSessionKey    = "impersonation"
)
