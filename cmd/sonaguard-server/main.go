package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/sonaguard/sonaguard/logging"
	"github.com/sonaguard/sonaguard/server"
)

func main() {
	configPath := flag.String("config", "", "path to YAML configuration file")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	if *debug {
		logging.SetLevel(logging.DebugLevel)
	}

	cfg, err := server.LoadConfig(*configPath)
	if err != nil {
		logging.Fatal(err, "Failed to load configuration")
	}

	srv, err := server.New(cfg)
	if err != nil {
		logging.Fatal(err, "Failed to start server")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil {
		logging.Fatal(err, "Server exited with error")
	}
}
