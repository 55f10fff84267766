// Command gen-teletext writes an MPEG transport stream carrying EBU
// Teletext subtitles built from an SRT cue list, for exercising telx
// without broadcast captures.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/zsiec/telx/internal/mpegts"
	"github.com/zsiec/telx/internal/teletext"
	"github.com/zsiec/telx/test/tools/tsutil"
)

// ptsBase keeps the generated timeline away from zero so the stream looks
// like a mid-broadcast capture.
const ptsBase = 10 * 90000

func main() {
	output := pflag.StringP("output", "o", "teletext.ts", "output TS file")
	pageFlag := pflag.IntP("page", "p", 888, "teletext page to carry the subtitles (100-899)")
	lang := pflag.StringP("lang", "l", "eng", "ISO 639-2 language announced in the teletext descriptor")
	pid := pflag.Uint16("pid", tsutil.DefaultTeletextPID, "teletext PID")
	tableInterval := pflag.Duration("table-interval", 0, "repeat PAT/PMT before every PES packet when zero, otherwise at this interval")
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: gen-teletext [flags] <cues.srt>\n")
		fmt.Fprintf(os.Stderr, "Writes a TS with one teletext subtitle page per SRT cue.\n\n")
		pflag.PrintDefaults()
	}
	pflag.Parse()

	if pflag.NArg() != 1 {
		pflag.Usage()
		os.Exit(1)
	}

	page, err := teletext.PageFromDecimal(*pageFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "page: %v\n", err)
		os.Exit(1)
	}

	cues, err := parseSRT(pflag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "parse SRT %s: %v\n", pflag.Arg(0), err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "SRT %s: %d cues\n", pflag.Arg(0), len(cues))

	mux := tsutil.NewMuxer(mpegts.TeletextEntry{
		Language: *lang,
		Type:     mpegts.TeletextSubtitle,
		Magazine: uint8(page.Magazine() & 0x7),
		Page:     uint8(page.Number()),
	})
	mux.TeletextPID = *pid

	intervalTicks := int64(tableInterval.Seconds() * 90000)
	lastTables := int64(-1 << 62)
	writePES := func(pts int64, packets [][]byte) {
		if intervalTicks == 0 || pts-lastTables >= intervalTicks {
			mux.WriteTables()
			lastTables = pts
		}
		mux.WritePES(pts, tsutil.SubtitleUnits(packets)...)
	}

	for _, c := range schedule(cues) {
		pts := ptsBase + c.at.Milliseconds()*90
		if c.lines == nil {
			// A bare header ends the previous page.
			writePES(pts, [][]byte{tsutil.Header(page, tsutil.HeaderFlags{Subtitle: true, Erase: true})})
			continue
		}
		writePES(pts, tsutil.SubtitlePage(page, c.lines...))
	}

	if err := os.WriteFile(*output, mux.Bytes(), 0644); err != nil {
		fmt.Fprintf(os.Stderr, "write output: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "Wrote %d bytes to %s (page %d, PID 0x%04X)\n", mux.Len(), *output, *pageFlag, *pid)
}
