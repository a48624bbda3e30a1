package main

import (
	"binder/internal/config"
)

func buildSocketPath(cfg *config.Config) string {
	if cfg == nil {
		return "binder.sock"
	}
	return cfg.SocketPath()
}
