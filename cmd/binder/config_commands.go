package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"binder/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigShowCommand(ctx))
	configCmd.AddCommand(newConfigInitCommand())
	configCmd.AddCommand(newConfigValidateCommand(ctx))

	return configCmd
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:         "show",
		Short:       "Show the resolved configuration",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, exists, err := config.Load(configPathArg(ctx))
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, cfg)
			}

			stdout := cmd.OutOrStdout()
			fmt.Fprintf(stdout, "Config path: %s\n", path)
			if !exists {
				fmt.Fprintln(stdout, "Config file does not exist; showing defaults")
			}
			table := renderTable(
				[]string{"Setting", "Value"},
				buildConfigRows(cfg),
				[]columnAlignment{alignLeft, alignLeft},
			)
			fmt.Fprintln(stdout, table)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of a table")
	return cmd
}

func buildConfigRows(cfg *config.Config) [][]string {
	return [][]string{
		{"paths.log_dir", cfg.Paths.LogDir},
		{"paths.session_dir", cfg.Paths.SessionDir},
		{"paths.report_dir", cfg.Paths.ReportDir},
		{"paths.workspace_dir", cfg.Paths.WorkspaceDir},
		{"excel.process_name", cfg.Excel.ProcessName},
		{"excel.save_retries", strconv.Itoa(cfg.Excel.SaveRetries)},
		{"excel.save_retry_delay_ms", strconv.Itoa(cfg.Excel.SaveRetryDelayMS)},
		{"excel.open_read_only_fallback", yesNo(cfg.Excel.OpenReadOnlyFallback)},
		{"links.check_days", strconv.Itoa(cfg.Links.CheckDays)},
		{"links.show_full_path", yesNo(cfg.Links.ShowFullPath)},
		{"links.save_run_log", yesNo(cfg.Links.SaveRunLog)},
		{"links.save_scan_summary", yesNo(cfg.Links.SaveScanSummary)},
		{"monitor.enabled", yesNo(cfg.Monitor.Enabled)},
		{"monitor.sample_interval_seconds", strconv.Itoa(cfg.Monitor.SampleIntervalSeconds)},
		{"procs.memory_warning_mb", strconv.Itoa(cfg.Procs.MemoryWarningMB)},
		{"logging.format", cfg.Logging.Format},
		{"logging.level", cfg.Logging.Level},
		{"notifications.ntfy_topic", cfg.Notifications.NtfyTopic},
	}
}

func configPathArg(ctx *commandContext) string {
	if ctx == nil || ctx.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*ctx.configFlag)
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return fmt.Errorf("determine default config path: %w", err)
				}
				target = defaultPath
			} else {
				expanded, err := config.ExpandPath(target)
				if err != nil {
					return fmt.Errorf("resolve config path: %w", err)
				}
				target = expanded
			}

			dir := filepath.Dir(target)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create config directory %q: %w", dir, err)
			}

			if !overwrite {
				if _, err := os.Stat(target); err == nil {
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				} else if err != nil && !os.IsNotExist(err) {
					return fmt.Errorf("check config path: %w", err)
				}
			}

			if err := config.CreateSample(target); err != nil {
				return fmt.Errorf("create sample config: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(out, "Edit the file to point paths.workspace_dir at your workbook directory before starting the agent.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing configuration if present")
	return cmd
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:         "validate",
		Short:       "Validate configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, exists, err := config.Load(configPathArg(ctx))
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return fmt.Errorf("ensure directories: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config path: %s\n", path)
			if !exists {
				fmt.Fprintln(out, "Config file did not exist; defaults were used")
			}
			fmt.Fprintln(out, "Configuration valid")
			return nil
		},
	}
}
