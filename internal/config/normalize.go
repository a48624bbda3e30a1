package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeExcel()
	c.normalizeLinks()
	c.normalizeMonitor()
	c.normalizeProcs()
	c.normalizeLogging()
	c.normalizeNotifications()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.SessionDir) == "" {
		c.Paths.SessionDir = defaultSessionDir
	}
	if c.Paths.SessionDir, err = expandPath(c.Paths.SessionDir); err != nil {
		return fmt.Errorf("paths.session_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.ReportDir) == "" {
		c.Paths.ReportDir = defaultReportDir
	}
	if c.Paths.ReportDir, err = expandPath(c.Paths.ReportDir); err != nil {
		return fmt.Errorf("paths.report_dir: %w", err)
	}
	c.Paths.WorkspaceDir = strings.TrimSpace(c.Paths.WorkspaceDir)
	if c.Paths.WorkspaceDir != "" {
		if c.Paths.WorkspaceDir, err = expandPath(c.Paths.WorkspaceDir); err != nil {
			return fmt.Errorf("paths.workspace_dir: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizeExcel() {
	c.Excel.ProcessName = strings.ToLower(strings.TrimSpace(c.Excel.ProcessName))
	if c.Excel.ProcessName == "" {
		c.Excel.ProcessName = defaultExcelProcessName
	}
	if c.Excel.SaveRetries <= 0 {
		c.Excel.SaveRetries = defaultSaveRetries
	}
	if c.Excel.SaveRetryDelayMS <= 0 {
		c.Excel.SaveRetryDelayMS = defaultSaveRetryDelayMS
	}
}

func (c *Config) normalizeLinks() {
	if c.Links.CheckDays <= 0 {
		c.Links.CheckDays = defaultLinkCheckDays
	}
}

func (c *Config) normalizeMonitor() {
	if c.Monitor.SampleIntervalSeconds <= 0 {
		c.Monitor.SampleIntervalSeconds = defaultSampleIntervalSeconds
	}
	if c.Monitor.OperationHistory <= 0 {
		c.Monitor.OperationHistory = defaultOperationHistory
	}
	if c.Monitor.SystemHistory <= 0 {
		c.Monitor.SystemHistory = defaultSystemHistory
	}
	if c.Monitor.CPUWarningPercent <= 0 {
		c.Monitor.CPUWarningPercent = defaultCPUWarningPercent
	}
	if c.Monitor.CPUCriticalPercent <= 0 {
		c.Monitor.CPUCriticalPercent = defaultCPUCriticalPercent
	}
	if c.Monitor.MemoryWarningPercent <= 0 {
		c.Monitor.MemoryWarningPercent = defaultMemoryWarningPercent
	}
	if c.Monitor.MemoryCriticalPercent <= 0 {
		c.Monitor.MemoryCriticalPercent = defaultMemoryCriticalPercent
	}
	if c.Monitor.SlowOperationSeconds <= 0 {
		c.Monitor.SlowOperationSeconds = defaultSlowOperationSeconds
	}
	if c.Monitor.VerySlowOperationSeconds <= 0 {
		c.Monitor.VerySlowOperationSeconds = defaultVerySlowOperationSeconds
	}
}

func (c *Config) normalizeProcs() {
	if c.Procs.MemoryWarningMB <= 0 {
		c.Procs.MemoryWarningMB = defaultProcMemoryWarningMB
	}
	if c.Procs.CountWarning <= 0 {
		c.Procs.CountWarning = defaultProcCountWarning
	}
	if c.Procs.CountCritical <= 0 {
		c.Procs.CountCritical = defaultProcCountCritical
	}
	if c.Procs.TerminateWaitSeconds <= 0 {
		c.Procs.TerminateWaitSeconds = defaultTerminateWaitSeconds
	}
	if c.Procs.ForceCloseWaitSeconds <= 0 {
		c.Procs.ForceCloseWaitSeconds = defaultForceCloseWaitSeconds
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("BINDER_NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
	c.Notifications.NtfyServer = strings.TrimSpace(c.Notifications.NtfyServer)
	if c.Notifications.NtfyServer == "" {
		c.Notifications.NtfyServer = defaultNtfyServer
	}
	c.Notifications.NtfyServer = strings.TrimRight(c.Notifications.NtfyServer, "/")
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
}
