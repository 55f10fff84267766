package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/zsiec/telx/internal/media"
)

func TestJSONLines(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	j := NewJSONLines(&buf)
	subs := []*media.Subtitle{
		{PID: 0x240, Page: 888, Language: "de", Start: 0, End: 1960, Text: "<b>Grüße</b>"},
		{PID: 0x240, Page: 150, Start: 2000, End: 3000, Text: "A\nB"},
	}
	for _, s := range subs {
		if err := j.WriteSubtitle(s); err != nil {
			t.Fatal(err)
		}
	}
	if buf.Len() != 0 {
		t.Fatalf("wrote %d bytes before Flush", buf.Len())
	}
	if err := j.Flush(); err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	if len(lines) != len(subs) {
		t.Fatalf("got %d lines, want %d", len(lines), len(subs))
	}
	if !strings.Contains(lines[0], `"text":"<b>Grüße</b>"`) {
		t.Errorf("line 0 = %s, want unescaped markup", lines[0])
	}
	if strings.Contains(lines[1], "language") {
		t.Errorf("line 1 = %s, want empty language omitted", lines[1])
	}
	for i, line := range lines {
		var got media.Subtitle
		if err := json.Unmarshal([]byte(line), &got); err != nil {
			t.Fatalf("line %d: %v", i, err)
		}
		if got != *subs[i] {
			t.Errorf("line %d = %+v, want %+v", i, got, *subs[i])
		}
	}
}

func TestLogSink(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	s := NewLogSink(slog.New(slog.NewTextHandler(&buf, nil)))
	if err := s.WriteSubtitle(&media.Subtitle{Page: 888, Start: 10, End: 20, Text: "HI"}); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"msg=subtitle", "page=888", "text=HI", "component=subtitles"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output %q missing %q", out, want)
		}
	}
}

type failSink struct{ err error }

func (f failSink) WriteSubtitle(*media.Subtitle) error { return f.err }

func TestMultiStopsAtFirstError(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	j := NewJSONLines(&buf)
	errBoom := errors.New("boom")
	m := Multi{j, failSink{errBoom}, failSink{errors.New("unreached")}}

	if err := m.WriteSubtitle(&media.Subtitle{Text: "X"}); !errors.Is(err, errBoom) {
		t.Fatalf("err = %v, want boom", err)
	}
	j.Flush()
	if !strings.Contains(buf.String(), `"text":"X"`) {
		t.Errorf("first sink did not receive the subtitle: %q", buf.String())
	}
}
