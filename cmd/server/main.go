package main

import (
	"context"
	"flag"
	"os"

	"github.com/adrianliechti/bookman/pkg/config"
	"github.com/adrianliechti/bookman/pkg/erpnext"
	"github.com/adrianliechti/bookman/pkg/logging"
	"github.com/adrianliechti/bookman/pkg/server"
)

func main() {
	addr := flag.String("addr", ":3000", "address to listen on")
	flag.Parse()

	cfg, err := config.Default()

	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger := logging.New(logging.ParseLevel(cfg.LogLevel))

	client, err := erpnext.Login(context.Background(), cfg.ERPNextURL, cfg.ERPNextUser, cfg.ERPNextPassword)

	if err != nil {
		logger.Error("erpnext login failed", "err", err)
		os.Exit(1)
	}

	s := server.New(client)

	logger.Info("mcp server listening", "addr", *addr)

	if err := s.ListenAndServe(*addr); err != nil {
		logger.Error("server error", "err", err)
		os.Exit(1)
	}
}
