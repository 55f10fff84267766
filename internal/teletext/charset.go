package teletext

import (
	"log/slog"

	"golang.org/x/text/unicode/norm"
)

// latinG0 is the G0 Latin primary set (ETS 300 706, table 35) indexed by
// character code minus 0x20, before any national option is applied.
var latinG0 = [96]uint16{
	0x0020, 0x0021, 0x0022, 0x00a3, 0x0024, 0x0025, 0x0026, 0x0027, 0x0028, 0x0029, 0x002a, 0x002b, 0x002c, 0x002d, 0x002e, 0x002f,
	0x0030, 0x0031, 0x0032, 0x0033, 0x0034, 0x0035, 0x0036, 0x0037, 0x0038, 0x0039, 0x003a, 0x003b, 0x003c, 0x003d, 0x003e, 0x003f,
	0x0040, 0x0041, 0x0042, 0x0043, 0x0044, 0x0045, 0x0046, 0x0047, 0x0048, 0x0049, 0x004a, 0x004b, 0x004c, 0x004d, 0x004e, 0x004f,
	0x0050, 0x0051, 0x0052, 0x0053, 0x0054, 0x0055, 0x0056, 0x0057, 0x0058, 0x0059, 0x005a, 0x00ab, 0x00bd, 0x00bb, 0x005e, 0x0023,
	0x002d, 0x0061, 0x0062, 0x0063, 0x0064, 0x0065, 0x0066, 0x0067, 0x0068, 0x0069, 0x006a, 0x006b, 0x006c, 0x006d, 0x006e, 0x006f,
	0x0070, 0x0071, 0x0072, 0x0073, 0x0074, 0x0075, 0x0076, 0x0077, 0x0078, 0x0079, 0x007a, 0x00bc, 0x00a6, 0x00be, 0x00f7, 0x007f,
}

// nationalPositions lists the 13 G0 slots (code minus 0x20) replaced by a
// national option subset.
var nationalPositions = [13]uint8{
	0x03, 0x04, 0x20, 0x3b, 0x3c, 0x3d, 0x3e, 0x3f, 0x40, 0x5b, 0x5c, 0x5d, 0x5e,
}

type nationalSubset struct {
	language string
	chars    [13]uint16
}

// nationalSubsets holds the Latin national option sub-sets (table 36).
var nationalSubsets = [13]nationalSubset{
	{"English", [13]uint16{0x00a3, 0x0024, 0x0040, 0x00ab, 0x00bd, 0x00bb, 0x005e, 0x0023, 0x002d, 0x00bc, 0x00a6, 0x00be, 0x00f7}},
	{"French", [13]uint16{0x00e9, 0x00ef, 0x00e0, 0x00eb, 0x00ea, 0x00f9, 0x00ee, 0x0023, 0x00e8, 0x00e2, 0x00f4, 0x00fb, 0x00e7}},
	{"Swedish, Finnish, Hungarian", [13]uint16{0x0023, 0x00a4, 0x00c9, 0x00c4, 0x00d6, 0x00c5, 0x00dc, 0x005f, 0x00e9, 0x00e4, 0x00f6, 0x00e5, 0x00fc}},
	{"Czech, Slovak", [13]uint16{0x0023, 0x016f, 0x010d, 0x0165, 0x017e, 0x00fd, 0x00ed, 0x0159, 0x00e9, 0x00e1, 0x011b, 0x00fa, 0x0161}},
	{"German", [13]uint16{0x0023, 0x0024, 0x00a7, 0x00c4, 0x00d6, 0x00dc, 0x005e, 0x005f, 0x00b0, 0x00e4, 0x00f6, 0x00fc, 0x00df}},
	{"Portuguese, Spanish", [13]uint16{0x00e7, 0x0024, 0x00a1, 0x00e1, 0x00e9, 0x00ed, 0x00f3, 0x00fa, 0x00bf, 0x00fc, 0x00f1, 0x00e8, 0x00e0}},
	{"Italian", [13]uint16{0x00a3, 0x0024, 0x00e9, 0x00b0, 0x00e7, 0x00bb, 0x005e, 0x0023, 0x00f9, 0x00e0, 0x00f2, 0x00e8, 0x00ec}},
	{"Rumanian", [13]uint16{0x0023, 0x00a4, 0x0162, 0x00c2, 0x015e, 0x0102, 0x00ce, 0x0131, 0x0163, 0x00e2, 0x015f, 0x0103, 0x00ee}},
	{"Polish", [13]uint16{0x0023, 0x0144, 0x0105, 0x017b, 0x015a, 0x0141, 0x0107, 0x00f3, 0x0119, 0x017c, 0x015b, 0x0142, 0x017a}},
	{"Turkish", [13]uint16{0x20a4, 0x011f, 0x0130, 0x015e, 0x00d6, 0x00c7, 0x00dc, 0x011e, 0x0131, 0x015f, 0x00f6, 0x00e7, 0x00fc}},
	{"Serbian, Croatian, Slovenian", [13]uint16{0x0023, 0x00cb, 0x010c, 0x0106, 0x017d, 0x0110, 0x0160, 0x00eb, 0x010d, 0x0107, 0x017e, 0x0111, 0x0161}},
	{"Estonian", [13]uint16{0x0023, 0x00f5, 0x0160, 0x00c4, 0x00d6, 0x017e, 0x00dc, 0x00d5, 0x0161, 0x00e4, 0x00f6, 0x017e, 0x00fc}},
	{"Lettish, Lithuanian", [13]uint16{0x0023, 0x0024, 0x0160, 0x0117, 0x0119, 0x017d, 0x010d, 0x016b, 0x0161, 0x0105, 0x0173, 0x017e, 0x012f}},
}

const noSubset = 0xFF

// nationalSubsetMap maps a 7-bit character set designation (table 32,
// group bits plus the C12-C14 option bits) to a nationalSubsets index.
var nationalSubsetMap = [128]uint8{
	0x00, 0x04, 0x02, 0x06, 0x01, 0x05, 0x03, 0xff, 0x08, 0x04, 0x02, 0x06, 0x01, 0xff, 0x03, 0xff,
	0x00, 0x04, 0x02, 0x06, 0x01, 0x05, 0x09, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x0a, 0xff, 0x07,
	0xff, 0x04, 0x0b, 0x0c, 0xff, 0xff, 0x03, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x09, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
}

// latinG2 is the G2 Latin supplementary set (table 37) indexed by code
// minus 0x20. Column 4 holds the non-spacing diacritical marks.
var latinG2 = [96]uint16{
	0x0020, 0x00a1, 0x00a2, 0x00a3, 0x0024, 0x00a5, 0x0023, 0x00a7, 0x00a4, 0x2018, 0x201c, 0x00ab, 0x2190, 0x2191, 0x2192, 0x2193,
	0x00b0, 0x00b1, 0x00b2, 0x00b3, 0x00d7, 0x00b5, 0x00b6, 0x00b7, 0x00f7, 0x2019, 0x201d, 0x00bb, 0x00bc, 0x00bd, 0x00be, 0x00bf,
	0x0020, 0x0300, 0x0301, 0x0302, 0x0303, 0x0304, 0x0306, 0x0307, 0x0308, 0x0000, 0x030a, 0x0327, 0x005f, 0x030b, 0x0328, 0x030c,
	0x2015, 0x00b9, 0x00ae, 0x00a9, 0x2122, 0x266a, 0x20ac, 0x2030, 0x03b1, 0x0000, 0x0000, 0x0000, 0x215b, 0x215c, 0x215d, 0x215e,
	0x03a9, 0x00c6, 0x0110, 0x00aa, 0x0126, 0x0000, 0x0132, 0x013f, 0x0141, 0x00d8, 0x0152, 0x00ba, 0x00de, 0x0166, 0x014a, 0x0149,
	0x0138, 0x00e6, 0x0111, 0x00f0, 0x0127, 0x0131, 0x0133, 0x0140, 0x0142, 0x00f8, 0x0153, 0x00df, 0x00fe, 0x0167, 0x014b, 0x0020,
}

// g2Accents holds the letters A-Z then a-z combined with the diacritical
// mark selected by X/26 modes 0x11 to 0x1F.
var g2Accents [15][52]uint16

func init() {
	for mode := range g2Accents {
		mark := rune(latinG2[0x21+mode])
		for i := 0; i < 52; i++ {
			letter := 'A' + rune(i)
			if i >= 26 {
				letter = 'a' + rune(i-26)
			}
			g2Accents[mode][i] = uint16(letter)
			if mark < 0x0300 || mark > 0x036F {
				continue
			}
			composed := []rune(norm.NFC.String(string([]rune{letter, mark})))
			if len(composed) == 1 && composed[0] <= 0xFFFF {
				g2Accents[mode][i] = uint16(composed[0])
			}
		}
	}
}

// subsetLanguage returns the language name of the national subset selected
// by a 7-bit designation, or false when the designation is not supported.
func subsetLanguage(id uint8) (string, bool) {
	if int(id) >= len(nationalSubsetMap) || nationalSubsetMap[id] == noSubset {
		return "", false
	}
	return nationalSubsets[nationalSubsetMap[id]].language, true
}

// designation is a national subset id that may not have been signalled.
type designation struct {
	id      uint8
	defined bool
}

// charset is the decoder-owned G0 table and the designations that select
// the national option applied to it.
type charset struct {
	log     *slog.Logger
	stats   StatsRecorder
	g0      [96]uint16
	current uint8
	m29     designation
	x28     designation
	warned  map[uint8]bool
}

func newCharset(log *slog.Logger, stats StatsRecorder) *charset {
	return &charset{
		log:    log,
		stats:  stats,
		g0:     latinG0,
		warned: make(map[uint8]bool),
	}
}

// remap applies the national subset selected by id to the G0 table. Calling
// it with the already active id does nothing.
func (c *charset) remap(id uint8) {
	if id == c.current {
		return
	}
	lang, ok := subsetLanguage(id)
	if !ok {
		if !c.warned[id] {
			c.warned[id] = true
			c.log.Warn("G0 Latin national subset not implemented",
				"id", id, "group", id>>3, "option", id&0x7)
		}
		return
	}

	subset := &nationalSubsets[nationalSubsetMap[id]]
	for j, pos := range nationalPositions {
		c.g0[pos] = subset.chars[j]
	}
	c.current = id
	c.log.Debug("using G0 Latin national subset", "id", id, "language", lang)
	if c.stats != nil {
		c.stats.RecordCharset(lang)
	}
}

// char maps a 7-bit G0 code to its code point under the active subset.
func (c *charset) char(code byte) uint16 {
	code &= 0x7F
	if code < 0x20 {
		return uint16(code)
	}
	return c.g0[code-0x20]
}
