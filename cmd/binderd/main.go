package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"binder/internal/agent"
	"binder/internal/config"
	"binder/internal/ipc"
	"binder/internal/logging"
)

func main() {
	configPath := flag.String("config", "", "configuration file path")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("prepare directories: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	a, err := agent.New(cfg, logger)
	if err != nil {
		log.Fatalf("create agent: %v", err)
	}
	defer a.Close()

	if err := a.Start(ctx); err != nil {
		log.Fatalf("start agent: %v", err)
	}

	// The socket comes up last so that a successful dial means the agent
	// is already serving requests.
	ipcServer, err := ipc.NewServer(ctx, buildSocketPath(cfg), a, logger)
	if err != nil {
		log.Fatalf("start IPC server: %v", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	select {
	case <-ctx.Done():
		a.Stop()
	case <-a.Done():
	}
	logger.Info("binderd shutting down", logging.String(logging.FieldEventType, "agent_shutdown"))
}
