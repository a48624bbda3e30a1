package config

const (
	defaultLogDir                   = "~/.local/share/binder/logs"
	defaultSessionDir               = "~/.local/share/binder/sessions"
	defaultReportDir                = "~/.local/share/binder/reports"
	defaultLogRetentionDays         = 14
	defaultLogFormat                = "console"
	defaultLogLevel                 = "info"
	defaultExcelProcessName         = "excel"
	defaultSaveRetries              = 3
	defaultSaveRetryDelayMS         = 100
	defaultLinkCheckDays            = 14
	defaultSampleIntervalSeconds    = 5
	defaultOperationHistory         = 1000
	defaultSystemHistory            = 100
	defaultCPUWarningPercent        = 80
	defaultCPUCriticalPercent       = 95
	defaultMemoryWarningPercent     = 80
	defaultMemoryCriticalPercent    = 95
	defaultSlowOperationSeconds     = 5
	defaultVerySlowOperationSeconds = 15
	defaultProcMemoryWarningMB      = 500
	defaultProcCountWarning         = 3
	defaultProcCountCritical        = 5
	defaultTerminateWaitSeconds     = 3
	defaultForceCloseWaitSeconds    = 5
	defaultNtfyServer               = "https://ntfy.sh"
	defaultNotifyRequestTimeout     = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LogDir:     defaultLogDir,
			SessionDir: defaultSessionDir,
			ReportDir:  defaultReportDir,
		},
		Excel: Excel{
			ProcessName:          defaultExcelProcessName,
			SaveRetries:          defaultSaveRetries,
			SaveRetryDelayMS:     defaultSaveRetryDelayMS,
			OpenReadOnlyFallback: true,
		},
		Links: Links{
			CheckDays:        defaultLinkCheckDays,
			ShowLink:         true,
			ShowLastModified: true,
			ShowStatus:       true,
			SaveRunLog:       true,
			SaveScanSummary:  true,
		},
		Monitor: Monitor{
			Enabled:                  true,
			SampleIntervalSeconds:    defaultSampleIntervalSeconds,
			OperationHistory:         defaultOperationHistory,
			SystemHistory:            defaultSystemHistory,
			CPUWarningPercent:        defaultCPUWarningPercent,
			CPUCriticalPercent:       defaultCPUCriticalPercent,
			MemoryWarningPercent:     defaultMemoryWarningPercent,
			MemoryCriticalPercent:    defaultMemoryCriticalPercent,
			SlowOperationSeconds:     defaultSlowOperationSeconds,
			VerySlowOperationSeconds: defaultVerySlowOperationSeconds,
		},
		Procs: Procs{
			MemoryWarningMB:       defaultProcMemoryWarningMB,
			CountWarning:          defaultProcCountWarning,
			CountCritical:         defaultProcCountCritical,
			TerminateWaitSeconds:  defaultTerminateWaitSeconds,
			ForceCloseWaitSeconds: defaultForceCloseWaitSeconds,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
		Notifications: Notifications{
			NtfyServer:     defaultNtfyServer,
			RequestTimeout: defaultNotifyRequestTimeout,
			LinkReports:    true,
			ProcessAlerts:  true,
			Errors:         true,
		},
	}
}
