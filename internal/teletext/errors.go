package teletext

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicatePage is matched by a DuplicatePageError.
	ErrDuplicatePage = errors.New("teletext: page already has a cue in this run")

	// ErrShortPacket is returned by ParsePacket for truncated input.
	ErrShortPacket = errors.New("teletext: packet too short")
)

// DuplicatePageError reports that a rendered page would overwrite a cue
// already stored for the same page in the caller's Cues map. It indicates
// misuse of the decoder, not stream corruption.
type DuplicatePageError struct {
	Page int
}

func (e *DuplicatePageError) Error() string {
	return fmt.Sprintf("teletext: duplicate cue for page %d", e.Page)
}

// Is lets errors.Is match ErrDuplicatePage.
func (e *DuplicatePageError) Is(target error) bool {
	return target == ErrDuplicatePage
}
