package demux

import "time"

const (
	ptsWrap = 1 << 33
	// A backwards jump of more than half the PTS range is a wrap, not a
	// reordering.
	ptsWrapThreshold = ptsWrap / 2
)

// ptsClock turns 33-bit PTS values into milliseconds from the first PTS
// seen, following wrap-arounds and adding a fixed offset.
type ptsClock struct {
	offset  int64
	first   int64
	last    int64
	wraps   int64
	started bool
}

func newPTSClock(offset time.Duration) *ptsClock {
	return &ptsClock{offset: offset.Milliseconds()}
}

func (c *ptsClock) millis(pts int64) int64 {
	if !c.started {
		c.first, c.last, c.started = pts, pts, true
	}
	if c.last-pts > ptsWrapThreshold {
		c.wraps++
	}
	c.last = pts
	return (pts+c.wraps*ptsWrap-c.first)/90 + c.offset
}

// now returns the time of the last PTS seen, or the offset before any.
func (c *ptsClock) now() int64 {
	if !c.started {
		return c.offset
	}
	return (c.last+c.wraps*ptsWrap-c.first)/90 + c.offset
}
