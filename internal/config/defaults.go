package config

const (
	defaultHashDBPath      = "~/.local/share/imagewatch/db/hashes.json"
	defaultSeenCachePath   = "~/.local/share/imagewatch/db/seen.json"
	defaultAlertsStatePath = "~/.local/share/imagewatch/db/alerts.json"
	defaultAuditLogPath    = "~/.local/share/imagewatch/logs/matches.csv"
	defaultDownloadDir     = "~/.local/share/imagewatch/downloads"
	defaultLogDir          = "~/.local/share/imagewatch/logs"
	defaultAPIBind         = "127.0.0.1:7519"

	defaultImageCountPerTerm = 10
	defaultWebCountPerTerm   = 0
	defaultSearchTimeout     = 20

	defaultMatchThreshold = 7
	defaultSSIMMinScore   = 0.82

	defaultNotifyTimeout = 10

	defaultRecheckInterval     = 600
	defaultRecheckInitialDelay = 15
	defaultRecheckWorkers      = 8
	defaultRecheckTimeout      = 12
	defaultRecheckBatchLimit   = 500
	defaultRecheckScope        = "all"

	defaultLogFormat = "console"
	defaultLogLevel  = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			HashDB:      defaultHashDBPath,
			SeenCache:   defaultSeenCachePath,
			AlertsState: defaultAlertsStatePath,
			AuditLog:    defaultAuditLogPath,
			DownloadDir: defaultDownloadDir,
			LogDir:      defaultLogDir,
			APIBind:     defaultAPIBind,
		},
		Search: Search{
			ImageCountPerTerm: defaultImageCountPerTerm,
			WebCountPerTerm:   defaultWebCountPerTerm,
			RequestTimeout:    defaultSearchTimeout,
		},
		Google: Google{
			Enabled: true,
		},
		Match: Match{
			Threshold:    defaultMatchThreshold,
			SSIMMinScore: defaultSSIMMinScore,
		},
		Notify: Notify{
			RequestTimeout: defaultNotifyTimeout,
		},
		Recheck: Recheck{
			IntervalSeconds:     defaultRecheckInterval,
			InitialDelaySeconds: defaultRecheckInitialDelay,
			Workers:             defaultRecheckWorkers,
			TimeoutSeconds:      defaultRecheckTimeout,
			BatchLimit:          defaultRecheckBatchLimit,
			Scope:               defaultRecheckScope,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
