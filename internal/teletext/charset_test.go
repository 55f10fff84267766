package teletext

import "testing"

func TestCharset_DefaultIsEnglish(t *testing.T) {
	t.Parallel()
	cs := newCharset(discardLogger(), nil)
	tests := []struct {
		code byte
		want uint16
	}{
		{'A', 'A'},
		{'#', 0x00a3},
		{'[', 0x00ab},
		{'`', 0x002d},
		{'~', 0x00f7},
		{0x07, 0x07},
	}
	for _, tc := range tests {
		if got := cs.char(tc.code); got != tc.want {
			t.Errorf("char(0x%02X) = U+%04X, want U+%04X", tc.code, got, tc.want)
		}
	}
}

func TestCharset_RemapGerman(t *testing.T) {
	t.Parallel()
	rec := newRecorder()
	cs := newCharset(discardLogger(), rec)

	cs.remap(1)
	if cs.current != 1 {
		t.Fatalf("current = %d, want 1", cs.current)
	}
	tests := []struct {
		code byte
		want uint16
	}{
		{'[', 0x00c4},
		{'{', 0x00e4},
		{'~', 0x00df},
		{'@', 0x00a7},
		{'A', 'A'},
	}
	for _, tc := range tests {
		if got := cs.char(tc.code); got != tc.want {
			t.Errorf("char(%q) = U+%04X, want U+%04X", tc.code, got, tc.want)
		}
	}

	cs.remap(1)
	if len(rec.charsets) != 1 || rec.charsets[0] != "German" {
		t.Errorf("charset switches = %v, want [German]", rec.charsets)
	}
}

func TestCharset_RemapSameIDIsNoop(t *testing.T) {
	t.Parallel()
	cs := newCharset(discardLogger(), nil)
	cs.remap(4)
	before := cs.g0
	cs.remap(4)
	if cs.g0 != before {
		t.Error("remapping the active subset changed the table")
	}
}

func TestCharset_UnknownSubsetLeavesTable(t *testing.T) {
	t.Parallel()
	cs := newCharset(discardLogger(), nil)
	cs.remap(4)
	before := cs.g0

	for _, id := range []uint8{7, 7, 0x7F, 200} {
		cs.remap(id)
	}
	if cs.g0 != before {
		t.Error("unknown subset changed the table")
	}
	if cs.current != 4 {
		t.Errorf("current = %d, want 4", cs.current)
	}
	if !cs.warned[7] || !cs.warned[0x7F] || !cs.warned[200] {
		t.Errorf("warned = %v", cs.warned)
	}
}

func TestCharset_EverySubsetDiffersFromBase(t *testing.T) {
	t.Parallel()
	for id := uint8(0); id < 128; id++ {
		lang, ok := subsetLanguage(id)
		if !ok {
			continue
		}
		cs := newCharset(discardLogger(), nil)
		cs.remap(id)
		if id != 0 && nationalSubsetMap[id] != 0 && cs.g0 == latinG0 {
			t.Errorf("subset 0x%02X (%s) left the base table unchanged", id, lang)
		}
	}
}

func TestSubsetLanguage(t *testing.T) {
	t.Parallel()
	tests := []struct {
		id   uint8
		want string
		ok   bool
	}{
		{0, "English", true},
		{1, "German", true},
		{4, "French", true},
		{0x16, "Turkish", true},
		{0x1F, "Rumanian", true},
		{0x22, "Estonian", true},
		{7, "", false},
		{130, "", false},
	}
	for _, tc := range tests {
		got, ok := subsetLanguage(tc.id)
		if got != tc.want || ok != tc.ok {
			t.Errorf("subsetLanguage(0x%02X) = %q, %v; want %q, %v", tc.id, got, ok, tc.want, tc.ok)
		}
	}
}

func TestG2Accents(t *testing.T) {
	t.Parallel()
	tests := []struct {
		mode   int
		letter rune
		want   uint16
	}{
		{0x11, 'A', 0x00c0}, // grave
		{0x12, 'e', 0x00e9}, // acute
		{0x13, 'o', 0x00f4}, // circumflex
		{0x14, 'n', 0x00f1}, // tilde
		{0x18, 'U', 0x00dc}, // diaeresis
		{0x1A, 'a', 0x00e5}, // ring
		{0x1B, 'c', 0x00e7}, // cedilla
		{0x1D, 'o', 0x0151}, // double acute
		{0x1E, 'e', 0x0119}, // ogonek
		{0x1F, 'S', 0x0160}, // caron
		{0x19, 'x', 'x'},    // no mark defined
		{0x1C, 'Q', 'Q'},    // underline has no precomposed form
		{0x12, 'q', 'q'},    // no precomposed q acute
	}
	for _, tc := range tests {
		idx := int(tc.letter - 'A')
		if tc.letter >= 'a' {
			idx = int(tc.letter-'a') + 26
		}
		if got := g2Accents[tc.mode-0x11][idx]; got != tc.want {
			t.Errorf("mode 0x%02X %q = U+%04X, want U+%04X", tc.mode, tc.letter, got, tc.want)
		}
	}
}
