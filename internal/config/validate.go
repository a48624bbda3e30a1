package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateExcel(); err != nil {
		return err
	}
	if err := c.validateLinks(); err != nil {
		return err
	}
	if err := c.validateMonitor(); err != nil {
		return err
	}
	if err := c.validateProcs(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return errors.New("paths.log_dir must be set")
	}
	if strings.TrimSpace(c.Paths.SessionDir) == "" {
		return errors.New("paths.session_dir must be set")
	}
	if strings.TrimSpace(c.Paths.ReportDir) == "" {
		return errors.New("paths.report_dir must be set")
	}
	return nil
}

func (c *Config) validateExcel() error {
	if strings.TrimSpace(c.Excel.ProcessName) == "" {
		return errors.New("excel.process_name must be set")
	}
	return ensurePositiveMap(map[string]int{
		"excel.save_retries":        c.Excel.SaveRetries,
		"excel.save_retry_delay_ms": c.Excel.SaveRetryDelayMS,
	})
}

func (c *Config) validateLinks() error {
	if c.Links.CheckDays < 1 {
		return errors.New("links.check_days must be >= 1")
	}
	return nil
}

func (c *Config) validateMonitor() error {
	if !c.Monitor.Enabled {
		return nil
	}
	if err := ensurePositiveMap(map[string]int{
		"monitor.sample_interval_seconds":     c.Monitor.SampleIntervalSeconds,
		"monitor.operation_history":           c.Monitor.OperationHistory,
		"monitor.system_history":              c.Monitor.SystemHistory,
		"monitor.slow_operation_seconds":      c.Monitor.SlowOperationSeconds,
		"monitor.very_slow_operation_seconds": c.Monitor.VerySlowOperationSeconds,
	}); err != nil {
		return err
	}
	for key, value := range map[string]float64{
		"monitor.cpu_warning":     c.Monitor.CPUWarningPercent,
		"monitor.cpu_critical":    c.Monitor.CPUCriticalPercent,
		"monitor.memory_warning":  c.Monitor.MemoryWarningPercent,
		"monitor.memory_critical": c.Monitor.MemoryCriticalPercent,
	} {
		if value <= 0 || value > 100 {
			return fmt.Errorf("%s must be between 0 and 100", key)
		}
	}
	if c.Monitor.CPUCriticalPercent <= c.Monitor.CPUWarningPercent {
		return errors.New("monitor.cpu_critical must be greater than monitor.cpu_warning")
	}
	if c.Monitor.MemoryCriticalPercent <= c.Monitor.MemoryWarningPercent {
		return errors.New("monitor.memory_critical must be greater than monitor.memory_warning")
	}
	if c.Monitor.VerySlowOperationSeconds <= c.Monitor.SlowOperationSeconds {
		return errors.New("monitor.very_slow_operation_seconds must be greater than monitor.slow_operation_seconds")
	}
	return nil
}

func (c *Config) validateProcs() error {
	if err := ensurePositiveMap(map[string]int{
		"procs.memory_warning_mb":        c.Procs.MemoryWarningMB,
		"procs.count_warning":            c.Procs.CountWarning,
		"procs.count_critical":           c.Procs.CountCritical,
		"procs.terminate_wait_seconds":   c.Procs.TerminateWaitSeconds,
		"procs.force_close_wait_seconds": c.Procs.ForceCloseWaitSeconds,
	}); err != nil {
		return err
	}
	if c.Procs.CountCritical < c.Procs.CountWarning {
		return errors.New("procs.count_critical must be >= procs.count_warning")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	if strings.TrimSpace(c.Notifications.NtfyTopic) != "" && strings.TrimSpace(c.Notifications.NtfyServer) == "" {
		return errors.New("notifications.ntfy_server must be set when notifications.ntfy_topic is configured")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
