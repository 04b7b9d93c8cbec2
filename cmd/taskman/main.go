// Package main is the entry point for the taskman CLI.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"taskman/internal/api"
	"taskman/internal/cli"
	"taskman/internal/commands"
	"taskman/internal/config"
	"taskman/internal/credstore"
	"taskman/internal/gateway"
)

func main() {
	// Create context that cancels on interrupt
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	// Create gateway factory
	factory := func(ctx context.Context, cfg *config.Config, creds *credstore.Store) (gateway.Gateway, error) {
		if err := cfg.EnsureDir(); err != nil {
			return nil, err
		}
		return api.New(cfg.BaseURL, creds), nil
	}

	// Create dispatcher
	dispatcher := cli.NewDispatcher(commands.DefaultRegistry, factory)

	// Run and exit with code
	code := dispatcher.Run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	os.Exit(code)
}
