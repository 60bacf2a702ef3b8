package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/adrianliechti/bookman/pkg/agent"
	"github.com/adrianliechti/bookman/pkg/api"
	"github.com/adrianliechti/bookman/pkg/config"
	"github.com/adrianliechti/bookman/pkg/console"
	"github.com/adrianliechti/bookman/pkg/logging"
	"github.com/adrianliechti/bookman/pkg/provider"
)

func main() {
	interactive := flag.Bool("console", false, "run an interactive console instead of the HTTP server")
	flag.Parse()

	cfg, err := config.Default()

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(logging.ParseLevel(cfg.LogLevel))

	p, err := provider.New(cfg, provider.WithMaxRounds(cfg.MaxToolRounds), provider.WithLogger(logger))

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	a := agent.New(p, agent.WithLogger(logger))

	if *interactive {
		if err := console.Run(context.Background(), cfg, a); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		return
	}

	s := api.New(a, cfg.ERPNextURL, api.WithLogger(logger))

	logger.Info("listening", "addr", cfg.Addr)

	if err := s.ListenAndServe(cfg.Addr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
