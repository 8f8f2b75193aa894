package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/neurostore/internal/client/cli"
	"github.com/dmitrijs2005/neurostore/internal/client/config"
)

func main() {

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.LoadConfig()
	root := cli.NewRootCommand(cfg, cli.Open)

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "neurostore: %v\n", err)
		stop()
		os.Exit(1)
	}

}
