package main

import (
	"flag"
	"log"

	"binder/internal/config"
	"binder/internal/mcpserver"
)

const version = "0.1.0"

func main() {
	configPath := flag.String("config", "", "configuration file path")
	flag.Parse()

	cfg, _, _, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("binder-mcp: load config: %v", err)
	}

	if err := mcpserver.New(cfg, version).Start(); err != nil {
		log.Fatalf("binder-mcp: %v", err)
	}
}
