package media

import (
	"testing"
	"time"
)

func TestSubtitleDuration(t *testing.T) {
	t.Parallel()
	tests := []struct {
		start, end int64
		want       time.Duration
	}{
		{1000, 2960, 1960 * time.Millisecond},
		{500, 500, 0},
	}
	for _, tc := range tests {
		s := &Subtitle{Start: tc.start, End: tc.end}
		if got := s.Duration(); got != tc.want {
			t.Errorf("Duration(%d, %d) = %v, want %v", tc.start, tc.end, got, tc.want)
		}
	}
}
