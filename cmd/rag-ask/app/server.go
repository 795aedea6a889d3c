// Package app provides the rag-ask server application.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kart-io/rag-ask/cmd/rag-ask/app/options"
	ragsvc "github.com/kart-io/rag-ask/internal/rag"
	"github.com/kart-io/rag-ask/pkg/infra/app"
)

// commandDesc is the description of the command.
const commandDesc = `rag-ask question answering service

Embeds a small knowledge base at startup and answers questions over HTTP:
the nearest passage is retrieved by exact squared L2 distance and handed
to a chat-completion model together with the question.

  POST /ask      {"question": "..."} -> {"answer": "..."}
  GET  /         service banner
  GET  /metrics  Prometheus metrics`

// NewApp creates and returns a new App object with default parameters.
func NewApp() *app.App {
	opts := options.NewServerOptions()
	return app.NewApp(
		app.WithName(ragsvc.Name),
		app.WithShortDescription("Retrieval-augmented question answering API"),
		app.WithDescription(commandDesc),
		app.WithOptions(opts),
		app.WithRunFunc(run(opts)),
	)
}

// run contains the main logic for initializing and running the server.
func run(opts *options.ServerOptions) app.RunFunc {
	return func() error {
		cfg, err := opts.Config()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		ctx := setupSignalContext()

		server, err := cfg.NewServer(ctx)
		if err != nil {
			return fmt.Errorf("failed to create server: %w", err)
		}

		return server.Run(ctx)
	}
}

// setupSignalContext returns a context that is cancelled on SIGINT or SIGTERM.
// A second signal exits immediately.
func setupSignalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	c := make(chan os.Signal, 2)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		cancel()
		<-c
		os.Exit(1)
	}()
	return ctx
}
