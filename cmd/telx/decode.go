package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/zsiec/telx/internal/output"
	"github.com/zsiec/telx/internal/pipeline"
)

func runDecode(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	f := newDecodeFlags("decode", stderr)
	if err := f.fs.Parse(args); err != nil {
		return err
	}
	if f.fs.NArg() != 1 {
		return errors.New("decode: expected one input file (or - for stdin)")
	}
	cfg, err := f.config()
	if err != nil {
		return err
	}

	log, logCloser, err := setupLogging(cfg, stderr)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	name := f.fs.Arg(0)
	in, err := openInput(name, stdin)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := openOutput(cfg.Output, stdout)
	if err != nil {
		return err
	}

	sink := output.NewJSONLines(out)
	p := pipeline.New(filepath.Base(name), in, demuxOptions(cfg), sink, log)
	p.SetProtocol("file")

	runErr := p.Run(ctx)
	flushErr := sink.Flush()
	closeErr := out.Close()
	if runErr != nil {
		return fmt.Errorf("decode %s: %w", name, runErr)
	}
	return errors.Join(flushErr, closeErr)
}

func openInput(name string, stdin io.Reader) (io.ReadCloser, error) {
	if name == "-" {
		return io.NopCloser(stdin), nil
	}
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	return f, nil
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

func openOutput(name string, stdout io.Writer) (io.WriteCloser, error) {
	if name == "" || name == "-" {
		return nopWriteCloser{stdout}, nil
	}
	f, err := os.Create(name)
	if err != nil {
		return nil, fmt.Errorf("open output: %w", err)
	}
	return f, nil
}
