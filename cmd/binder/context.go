package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"binder/internal/config"
	"binder/internal/excel"
	"binder/internal/ipc"
	"binder/internal/logging"
	"binder/internal/textutil"
)

type commandContext struct {
	socketFlag *string
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(socketFlag, configFlag *string) *commandContext {
	return &commandContext{
		socketFlag: socketFlag,
		configFlag: configFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

func (c *commandContext) socketPath() string {
	if c.socketFlag == nil {
		return defaultSocketPath()
	}
	if strings.TrimSpace(*c.socketFlag) == "" {
		*c.socketFlag = defaultSocketPath()
	}
	return *c.socketFlag
}

func (c *commandContext) withClient(fn func(*ipc.Client) error) error {
	client, err := c.dialClient()
	if err != nil {
		return err
	}
	defer client.Close()
	return fn(client)
}

func (c *commandContext) dialClient() (*ipc.Client, error) {
	socket := c.socketPath()
	client, err := ipc.Dial(socket)
	if err != nil {
		return nil, wrapDialError(err, socket)
	}
	return client, nil
}

// dialOptional connects to the agent when it is reachable. A nil client with
// nil error means the agent is down and the caller should fall back to
// direct file access.
func (c *commandContext) dialOptional() (*ipc.Client, error) {
	socket := c.socketPath()
	client, err := ipc.Dial(socket)
	if err == nil {
		return client, nil
	}
	if agentUnreachable(err) {
		return nil, nil
	}
	return nil, wrapDialError(err, socket)
}

// withWorkbooks runs fn against the agent when it is reachable and otherwise
// against a read-only manager over paths.workspace_dir. Exactly one of
// client and mgr is non-nil.
func (c *commandContext) withWorkbooks(fn func(client *ipc.Client, mgr *excel.Manager) error) error {
	client, err := c.dialOptional()
	if err != nil {
		return err
	}
	if client != nil {
		defer client.Close()
		return fn(client, nil)
	}

	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	bridge, err := excel.NewWorkspaceBridge(cfg.Paths.WorkspaceDir, logging.NewNop())
	if err != nil {
		return fmt.Errorf("open workspace %s: %w", cfg.Paths.WorkspaceDir, err)
	}
	defer bridge.Release()
	return fn(nil, excel.NewManager(bridge, cfg, logging.NewNop(), nil))
}

func agentUnreachable(err error) bool {
	return errors.Is(err, syscall.ENOENT) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		os.IsNotExist(err)
}

func wrapDialError(err error, socket string) error {
	switch {
	case errors.Is(err, syscall.ENOENT) || os.IsNotExist(err):
		return fmt.Errorf("connect to agent: socket %s not found; start the agent with `binder start`", socket)
	case errors.Is(err, syscall.ECONNREFUSED):
		return fmt.Errorf("connect to agent: socket %s refused the connection; verify the agent is running", socket)
	default:
		return fmt.Errorf("connect to agent: %w", err)
	}
}

func defaultSocketPath() string {
	cfg, _, _, err := config.Load("")
	if err == nil {
		return cfg.SocketPath()
	}

	logDir, err2 := config.ExpandPath("~/.local/share/binder/logs")
	if err2 != nil {
		return filepath.Join(os.TempDir(), "binder.sock")
	}
	return filepath.Join(logDir, "binder.sock")
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	return textutil.Ternary(value, "yes", "no")
}
