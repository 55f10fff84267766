package pipeline

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zsiec/telx/internal/demux"
	"github.com/zsiec/telx/internal/media"
	"github.com/zsiec/telx/internal/mpegts"
	"github.com/zsiec/telx/internal/teletext"
	"github.com/zsiec/telx/test/tools/tsutil"
)

const page888 = teletext.Page(0x888)

type collectSink struct {
	mu   sync.Mutex
	subs []*media.Subtitle
}

func (c *collectSink) WriteSubtitle(sub *media.Subtitle) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs = append(c.subs, sub)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// twoCues returns a stream showing "ONE" then "TWO" on page 888, one
// second apart, followed by an erase.
func twoCues() []byte {
	mux := tsutil.NewMuxer(mpegts.TeletextEntry{
		Language: "eng",
		Type:     mpegts.TeletextSubtitle,
		Magazine: 0,
		Page:     0x88,
	})
	mux.WritePES(90000, tsutil.SubtitleUnits(tsutil.SubtitlePage(page888, "ONE"))...)
	mux.WritePES(180000, tsutil.SubtitleUnits(tsutil.SubtitlePage(page888, "TWO"))...)
	mux.WritePES(270000, tsutil.SubtitleUnits([][]byte{
		tsutil.Header(page888, tsutil.HeaderFlags{Subtitle: true, Erase: true}),
	})...)
	return mux.Bytes()
}

func TestRunWithEOFReader(t *testing.T) {
	t.Parallel()

	sink := &collectSink{}
	p := New("empty", strings.NewReader(""), demux.Options{}, sink, discardLogger())
	require.NoError(t, p.Run(context.Background()))
	assert.Empty(t, sink.subs)
	assert.Zero(t, p.Snapshot().Subtitles)
}

func TestRunForwardsSubtitles(t *testing.T) {
	t.Parallel()

	sink := &collectSink{}
	p := New("file", bytes.NewReader(twoCues()), demux.Options{}, sink, discardLogger())
	p.SetProtocol("file")

	var seen []string
	p.OnSubtitle(func(sub *media.Subtitle) { seen = append(seen, sub.Text) })

	require.NoError(t, p.Run(context.Background()))
	require.Len(t, sink.subs, 2)

	assert.Equal(t, "ONE", sink.subs[0].Text)
	assert.Equal(t, "en", sink.subs[0].Language)
	assert.Equal(t, int64(0), sink.subs[0].Start)
	assert.Equal(t, "TWO", sink.subs[1].Text)
	assert.Equal(t, int64(1000), sink.subs[1].Start)
	assert.Equal(t, []string{"ONE", "TWO"}, seen)

	snap := p.Snapshot()
	assert.Equal(t, "file", snap.Key)
	assert.Equal(t, "file", snap.Protocol)
	assert.Equal(t, int64(2), snap.Subtitles)
	assert.Equal(t, sink.subs[1].End, snap.LastEndMs)
	require.Len(t, snap.Streams, 1)
	assert.Equal(t, uint16(tsutil.DefaultTeletextPID), snap.Streams[0].PID)
}

func TestRunReturnsSinkError(t *testing.T) {
	t.Parallel()

	errFull := errors.New("disk full")
	sink := SinkFunc(func(*media.Subtitle) error { return errFull })
	p := New("file", bytes.NewReader(twoCues()), demux.Options{}, sink, discardLogger())

	err := p.Run(context.Background())
	require.ErrorIs(t, err, errFull)
	assert.Zero(t, p.Snapshot().Subtitles)
}

func TestRunReturnsDuplicatePage(t *testing.T) {
	t.Parallel()

	var packets [][]byte
	packets = append(packets, tsutil.SubtitlePage(page888, "A")...)
	packets = append(packets, tsutil.SubtitlePage(page888, "B")...)
	packets = append(packets, tsutil.Header(page888, tsutil.HeaderFlags{Subtitle: true}))
	mux := tsutil.NewMuxer()
	mux.WritePES(90000, tsutil.SubtitleUnits(packets)...)

	p := New("dup", bytes.NewReader(mux.Bytes()), demux.Options{Pages: []int{888}}, &collectSink{}, discardLogger())
	err := p.Run(context.Background())
	assert.ErrorIs(t, err, teletext.ErrDuplicatePage)
}

func TestRunCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := New("cancelled", bytes.NewReader(twoCues()), demux.Options{}, &collectSink{}, discardLogger())
	assert.NoError(t, p.Run(ctx))
}

func TestSnapshotBeforeRun(t *testing.T) {
	t.Parallel()

	p := New("idle", strings.NewReader(""), demux.Options{}, &collectSink{}, nil)
	snap := p.Snapshot()
	assert.Equal(t, "idle", snap.Key)
	assert.Zero(t, snap.Subtitles)
	assert.Empty(t, snap.Streams)
	assert.NotNil(t, p.Demuxer())
}
