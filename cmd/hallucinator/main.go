package main

import (
	"flag"
	"log"
	"os"

	"hallucinator/internal/app"
	"hallucinator/internal/config"
)

func main() {
	configPath := flag.String("config", os.Getenv("HALLUCINATOR_CONFIG"), "path to a TOML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	application, err := app.NewApplication(cfg)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}

	if err := application.Run(); err != nil {
		log.Fatalf("Application failed: %v", err)
	}
}
