package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/vk/teeio-validator/internal/app"
	"github.com/vk/teeio-validator/internal/cli"
	"github.com/vk/teeio-validator/internal/dispatcher"
	"github.com/vk/teeio-validator/internal/hcl"
)

// main is the entrypoint for the teeio-validator application.
func main() {
	// Use a minimal logger until the full one is configured.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Stdout, os.Args[1:])
	stop()
	if err != nil {
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.ExitFailed)
	}
}

// run encapsulates the main application logic for easier testing and error
// handling. Every error it returns is an ExitError.
func run(ctx context.Context, outW io.Writer, args []string) error {
	appConfig, shouldExit, err := cli.Parse(args, outW)
	if err != nil {
		return err
	}
	if shouldExit {
		return nil
	}

	validator, err := app.NewApp(outW, appConfig, hcl.NewLoader())
	if err != nil {
		return &cli.ExitError{Code: cli.ExitUsage, Message: err.Error()}
	}

	_, err = validator.Run(ctx)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, app.ErrRunFailed):
		return &cli.ExitError{Code: cli.ExitFailed, Message: err.Error()}
	case errors.Is(err, dispatcher.ErrStructuralViolation):
		return &cli.ExitError{Code: cli.ExitStructural, Message: err.Error()}
	}
	return &cli.ExitError{Code: cli.ExitFailed, Message: err.Error()}
}
