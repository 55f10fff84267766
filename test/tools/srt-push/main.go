// Command srt-push streams a TS file to an SRT listener in real time, for
// feeding `telx serve` with files written by gen-teletext.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/pflag"
	srt "github.com/zsiec/srtgo"

	"github.com/zsiec/telx/test/tools/tsutil"
)

func main() {
	keyFlag := pflag.StringP("key", "k", "", "SRT stream ID (default: live/<file name>)")
	addrFlag := pflag.StringP("addr", "a", "127.0.0.1:6000", "SRT listener address")
	durationFlag := pflag.Float64("duration", 0, "file duration in seconds (default: PTS span)")
	loopFlag := pflag.Bool("loop", false, "loop the file, shifting timestamps on every pass")
	pflag.Parse()

	if pflag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "Usage: srt-push [flags] <file.ts>\n")
		pflag.PrintDefaults()
		os.Exit(1)
	}
	filePath := pflag.Arg(0)

	streamID := *keyFlag
	if streamID == "" {
		base := filepath.Base(filePath)
		streamID = "live/" + base[:len(base)-len(filepath.Ext(base))]
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read file: %v\n", err)
		os.Exit(1)
	}
	if len(data)%tsutil.TSPacketSize != 0 {
		fmt.Fprintf(os.Stderr, "Warning: file size not a multiple of %d\n", tsutil.TSPacketSize)
	}

	entries, firstPTS, lastPTS := scanTimestamps(data)
	var ptsDuration float64
	if firstPTS >= 0 {
		// Hold the last page for a second.
		ptsDuration = float64(lastPTS-firstPTS)/90000 + 1
	}
	duration := selectDuration(*durationFlag, ptsDuration)

	p := &pusher{
		data:        data,
		entries:     entries,
		loopTicks:   int64(duration * 90000),
		bytesPerSec: float64(len(data)) / duration,
		chunkSize:   tsutil.TSPacketSize * 7,
		streamID:    streamID,
		loop:        *loopFlag,
	}
	fmt.Printf("File: %s (%d packets, %.1fs, %.0f bytes/sec)\n",
		filePath, len(data)/tsutil.TSPacketSize, duration, p.bytesPerSec)

	for {
		fmt.Printf("[%s] Connecting to SRT %s...\n", streamID, *addrFlag)

		cfg := srt.DefaultConfig()
		cfg.StreamID = streamID

		conn, err := srt.Dial(*addrFlag, cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[%s] SRT connect failed: %v, retrying...\n", streamID, err)
			time.Sleep(time.Second)
			continue
		}

		fmt.Printf("[%s] Connected\n", streamID)
		err = p.stream(conn)
		conn.Close()
		if err == nil {
			fmt.Printf("[%s] Done\n", streamID)
			return
		}
		fmt.Fprintf(os.Stderr, "[%s] Connection lost: %v, reconnecting...\n", streamID, err)
		time.Sleep(time.Second)
	}
}

// selectDuration prefers an explicit duration, then the PTS span, then a
// minute.
func selectDuration(override, ptsDuration float64) float64 {
	switch {
	case override > 0:
		return override
	case ptsDuration > 0:
		return ptsDuration
	default:
		return 60
	}
}

type pusher struct {
	data        []byte
	entries     []tsEntry
	loopTicks   int64
	bytesPerSec float64
	chunkSize   int
	streamID    string
	loop        bool
}

// stream writes the file paced against a global clock, so timing stays
// continuous across loop boundaries.
func (p *pusher) stream(conn *srt.Conn) error {
	start := time.Now()
	var sent int64

	for pass := 1; ; pass++ {
		for i := 0; i < len(p.data); i += p.chunkSize {
			end := min(i+p.chunkSize, len(p.data))
			if _, err := conn.Write(p.data[i:end]); err != nil {
				return err
			}
			sent += int64(end - i)

			expected := float64(sent) / p.bytesPerSec
			if elapsed := time.Since(start).Seconds(); expected > elapsed {
				time.Sleep(time.Duration((expected - elapsed) * float64(time.Second)))
			}
		}

		if !p.loop {
			return nil
		}
		addTimestampOffset(p.data, p.entries, p.loopTicks)
		fmt.Printf("[%s] Pass %d complete (%.1f MB sent, %s elapsed)\n",
			p.streamID, pass, float64(sent)/(1024*1024), time.Since(start).Truncate(time.Second))
	}
}
