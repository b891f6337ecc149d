package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	guestctlcmd "github.com/guest-quantum/guestctl/pkg/guestctl/cmd"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := guestctlcmd.DefaultConfig()
	cfg.Context = ctx
	root := guestctlcmd.NewRootCommand(cfg)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintf(cfg.ErrWriter, "Error: %v\n", err)
		return 1
	}
	return 0
}
