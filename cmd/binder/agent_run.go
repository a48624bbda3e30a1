package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"binder/internal/agent"
	"binder/internal/ipc"
	"binder/internal/logging"
)

func newAgentRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:          "agent",
		Short:        "Run the binder agent (internal)",
		Hidden:       true,
		Annotations:  map[string]string{"skipConfigLoad": "true"},
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAgentProcess(cmd.Context(), ctx)
		},
	}
}

// runAgentProcess hosts the agent in the foreground until a signal arrives
// or a stop request lands over IPC. `binder start` launches this command as
// a detached child.
func runAgentProcess(cmdCtx context.Context, ctx *commandContext) error {
	if ctx == nil {
		return fmt.Errorf("command context is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	a, err := agent.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("create agent: %w", err)
	}
	defer a.Close()

	if err := a.Start(signalCtx); err != nil {
		return fmt.Errorf("start agent: %w", err)
	}

	// The socket comes up last so that a successful dial means the agent
	// is already serving requests.
	ipcServer, err := ipc.NewServer(signalCtx, ctx.socketPath(), a, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	select {
	case <-signalCtx.Done():
		a.Stop()
	case <-a.Done():
	}
	logger.Info("binder agent shutting down", logging.String(logging.FieldEventType, "agent_shutdown"))
	return nil
}
