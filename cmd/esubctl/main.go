package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/esub/esub-go/internal/config"
	"github.com/esub/esub-go/internal/logging"
)

func main() {
	logging.ConfigureRuntime()

	settings, err := parseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "esubctl: %v\n", err)
		os.Exit(2)
	}

	opts, err := config.Resolve()
	if err != nil {
		fmt.Fprintf(os.Stderr, "esubctl: %v\n", err)
		os.Exit(2)
	}
	if settings.configPath != "" {
		opts, err = loadFileConfig(settings.configPath, opts)
		if err != nil {
			fmt.Fprintf(os.Stderr, "esubctl: %v\n", err)
			os.Exit(2)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, settings, opts, os.Stdout, os.Stdin); err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "Interrupted")
			os.Exit(130)
		}
		if settings.debug {
			fmt.Fprintf(os.Stderr, "esubctl: %+v\n", err)
		} else {
			fmt.Fprintf(os.Stderr, "esubctl: %v\n", err)
		}
		os.Exit(1)
	}
}
