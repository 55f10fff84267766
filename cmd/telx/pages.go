package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/zsiec/telx/internal/demux"
	"github.com/zsiec/telx/internal/media"
	"github.com/zsiec/telx/internal/pipeline"
)

// runPages decodes the whole input and reports every teletext stream with
// its announced and discovered subtitle pages.
func runPages(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	f := newDecodeFlags("pages", stderr)
	if err := f.fs.Parse(args); err != nil {
		return err
	}
	if f.fs.NArg() != 1 {
		return errors.New("pages: expected one input file (or - for stdin)")
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

	in, err := openInput(f.fs.Arg(0), stdin)
	if err != nil {
		return err
	}
	defer in.Close()

	counts := make(map[pageKey]int)
	count := pipeline.SinkFunc(func(sub *media.Subtitle) error {
		counts[pageKey{sub.PID, sub.Page}]++
		return nil
	})
	p := pipeline.New(f.fs.Arg(0), in, demuxOptions(cfg), count, log)
	if err := p.Run(ctx); err != nil {
		return err
	}

	return printStreams(stdout, p.Snapshot().Streams, counts)
}

type pageKey struct {
	pid  uint16
	page int
}

func printStreams(w io.Writer, streams []demux.StreamInfo, counts map[pageKey]int) error {
	if len(streams) == 0 {
		_, err := fmt.Fprintln(w, "no teletext streams found")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, s := range streams {
		fmt.Fprintf(tw, "PID %d (0x%04x)\n", s.PID, s.PID)
		if s.Programme != nil {
			fmt.Fprintf(tw, "  programme:\t%s\n", s.Programme.Label)
		}
		for _, e := range s.Entries {
			fmt.Fprintf(tw, "  announced:\t%d\t%s\t%s\n", e.PageNumber(), e.Language, e.Type)
		}
		fmt.Fprintf(tw, "  subtitle-flagged:\t%s\n", joinInts(s.Flagged))
		for _, page := range s.Pages {
			fmt.Fprintf(tw, "  decoded:\t%d\t%d subtitles\n", page, counts[pageKey{s.PID, page}])
		}
	}
	return tw.Flush()
}

func joinInts(v []int) string {
	if len(v) == 0 {
		return "-"
	}
	parts := make([]string, len(v))
	for i, n := range v {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, " ")
}
