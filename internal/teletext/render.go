package teletext

import (
	"fmt"
	"strings"
	"unicode"
)

// Spacing attributes used by the renderer (ETS 300 706, 12.2).
const (
	endBox   = 0x0A
	startBox = 0x0B
	white    = 0x07
)

var fontColors = [8]string{
	"#000000", // black
	"#ff0000", // red
	"#00ff00", // green
	"#ffff00", // yellow
	"#0000ff", // blue
	"#ff00ff", // magenta
	"#00ffff", // cyan
	"#ffffff", // white
}

// topAlignRows is the row below which a page is positioned at the top of
// the screen when every used row sits above it.
const topAlignRows = 6

// renderPage turns a finished page into cue text. It returns false when no
// row contains a start box, meaning nothing on the page is a subtitle.
// The page grid is modified in place.
func renderPage(page *pageBuffer, withColors bool) (string, bool) {
	if !hasBox(page) {
		return "", false
	}
	if page.show > page.hide {
		page.hide = page.show
	}

	var out strings.Builder
	var usedRows []int

	for row := 1; row < rows; row++ {
		line := &page.text[row]

		colStart, colStop := cols, cols
		boxOpen := false
		for col := 0; col < cols; col++ {
			switch v := line[col]; {
			case v == startBox:
				if colStart == cols {
					colStart = col
				} else {
					line[col] = 0x20
				}
				boxOpen = true
			case v == endBox:
				line[col] = 0x20
				boxOpen = false
			case !boxOpen && colStart < cols && v > 0x20:
				// Text between end box and start box is not displayed.
				line[col] = 0x20
			}
		}
		if colStart >= cols {
			continue
		}

		for col := colStart + 1; col < cols; col++ {
			if line[col] > 0x20 {
				if colStop >= cols {
					colStart = col
				}
				colStop = col
			}
			if line[col] == endBox {
				break
			}
		}
		if colStop >= cols {
			continue
		}

		// Alpha white is the start-of-row default.
		foreground := uint16(white)
		fontOpen := false
		for col := 0; col <= colStop; col++ {
			v := line[col]
			if col < colStart && v <= white {
				foreground = v
			}
			if col == colStart && withColors && foreground > 0 && foreground < white {
				fmt.Fprintf(&out, `<font color="%s">`, fontColors[foreground])
				fontOpen = true
			}
			if col < colStart {
				continue
			}

			if v <= white {
				if !withColors {
					v = 0x20
				} else {
					if fontOpen {
						out.WriteString("</font> ")
						fontOpen = false
					}
					if v > 0 && v < white {
						fmt.Fprintf(&out, `<font color="%s">`, fontColors[v])
						fontOpen = true
					}
				}
			}
			if v >= 0x20 {
				out.WriteRune(rune(v))
			}
		}
		if fontOpen {
			out.WriteString("</font>")
		}

		out.WriteByte('\n')
		usedRows = append(usedRows, row)
	}

	text := strings.TrimRightFunc(out.String(), unicode.IsSpace)
	if len(usedRows) > 0 && allAbove(usedRows, topAlignRows) {
		text = `{\an8}` + text
	}
	return text, true
}

func hasBox(page *pageBuffer) bool {
	for row := 1; row < rows; row++ {
		for _, v := range page.text[row] {
			if v == startBox {
				return true
			}
		}
	}
	return false
}

func allAbove(rows []int, limit int) bool {
	for _, r := range rows {
		if r >= limit {
			return false
		}
	}
	return true
}
