package main

import (
	"bufio"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"
)

type cue struct {
	start, end time.Duration
	lines      []string
}

var timecodeRe = regexp.MustCompile(`(\d{2}):(\d{2}):(\d{2}),(\d{3})\s*-->\s*(\d{2}):(\d{2}):(\d{2}),(\d{3})`)

func parseSRT(path string) ([]cue, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readSRT(f)
}

func readSRT(r io.Reader) ([]cue, error) {
	var cues []cue
	scanner := bufio.NewScanner(r)
	state := 0 // 0=index, 1=timecode, 2=text
	var current cue

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		switch state {
		case 0:
			if line == "" {
				continue
			}
			if _, err := strconv.Atoi(line); err == nil {
				state = 1
			}
		case 1:
			m := timecodeRe.FindStringSubmatch(line)
			if m == nil {
				state = 0
				continue
			}
			current.start = srtTime(m[1], m[2], m[3], m[4])
			current.end = srtTime(m[5], m[6], m[7], m[8])
			state = 2
		case 2:
			if line == "" {
				cues = append(cues, current)
				current = cue{}
				state = 0
			} else {
				current.lines = append(current.lines, teletextSafe(line))
			}
		}
	}

	if len(current.lines) > 0 {
		cues = append(cues, current)
	}
	return cues, scanner.Err()
}

func srtTime(h, m, s, ms string) time.Duration {
	hi, _ := strconv.Atoi(h)
	mi, _ := strconv.Atoi(m)
	si, _ := strconv.Atoi(s)
	msi, _ := strconv.Atoi(ms)
	return time.Duration(hi)*time.Hour + time.Duration(mi)*time.Minute +
		time.Duration(si)*time.Second + time.Duration(msi)*time.Millisecond
}

// maxLineLength leaves room for the two start boxes and two end boxes on
// a 40 column row.
const maxLineLength = 36

// teletextSafe limits a line to printable ASCII, which every national
// option subset renders the same way apart from a few symbols.
func teletextSafe(line string) string {
	var b strings.Builder
	for _, r := range line {
		if b.Len() == maxLineLength {
			break
		}
		if r < 0x20 || r > 0x7E {
			r = '?'
		}
		b.WriteRune(r)
	}
	return b.String()
}

// event is a page transmission: a subtitle page when lines is set, or a
// bare header hiding the current page.
type event struct {
	at    time.Duration
	lines []string
}

// schedule turns cues into page transmissions. A cue followed directly by
// the next one needs no separate hide, since the next page replaces it.
func schedule(cues []cue) []event {
	var events []event
	for i, c := range cues {
		if len(c.lines) > 4 {
			c.lines = c.lines[:4]
		}
		events = append(events, event{at: c.start, lines: c.lines})
		if i+1 < len(cues) && cues[i+1].start <= c.end {
			continue
		}
		events = append(events, event{at: c.end})
	}
	return events
}
