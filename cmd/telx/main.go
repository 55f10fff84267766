// Command telx extracts EBU Teletext subtitles from MPEG transport streams.
//
// Usage:
//
//	telx decode [flags] <file.ts|->
//	telx serve  [flags]
//	telx pages  [flags] <file.ts|->
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

	"github.com/spf13/pflag"
)

var version = "dev"

const usage = `telx %s: EBU Teletext subtitle extractor

Usage:
  telx decode [flags] <file.ts|->   decode subtitles to JSON lines
  telx serve [flags]                decode live SRT streams
  telx pages [flags] <file.ts|->    list teletext PIDs and subtitle pages

Run "telx <command> --help" for the flags of a command.
`

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, pflag.ErrHelp) {
			fmt.Fprintln(os.Stderr, "telx:", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		fmt.Fprintf(stderr, usage, version)
		return errors.New("missing command")
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "decode":
		return runDecode(ctx, rest, stdin, stdout, stderr)
	case "serve":
		return runServe(ctx, rest, stdout, stderr)
	case "pages":
		return runPages(ctx, rest, stdin, stdout, stderr)
	case "version", "--version":
		fmt.Fprintln(stdout, "telx", version)
		return nil
	case "help", "-h", "--help":
		fmt.Fprintf(stdout, usage, version)
		return nil
	default:
		fmt.Fprintf(stderr, usage, version)
		return fmt.Errorf("unknown command %q", cmd)
	}
}
