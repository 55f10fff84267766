package mpegts

import "testing"

func TestParseDescriptors(t *testing.T) {
	t.Parallel()
	loop := []byte{
		0x0A, 0x04, 'f', 'r', 'a', 0x00, // ISO 639 language
		0x46, 0x05, 'f', 'r', 'a', 0x10, 0x01, // VBI teletext, subtitle page 801
		0x52, 0x01, 0x07, // stream identifier
	}
	ds, err := parseDescriptors(loop)
	if err != nil {
		t.Fatal(err)
	}
	if len(ds) != 3 {
		t.Fatalf("descriptors = %d, want 3", len(ds))
	}
	if ds[0].Teletext != nil || ds[2].Teletext != nil {
		t.Error("non-teletext descriptor decoded as teletext")
	}
	if len(ds[1].Teletext) != 1 {
		t.Fatalf("teletext entries = %d, want 1", len(ds[1].Teletext))
	}
	want := TeletextEntry{Language: "fra", Type: TeletextSubtitle, Magazine: 0, Page: 0x01}
	if got := ds[1].Teletext[0]; got != want {
		t.Errorf("entry = %+v, want %+v", got, want)
	}
	if got := ds[1].Teletext[0].PageNumber(); got != 801 {
		t.Errorf("page = %d, want 801", got)
	}
}

func TestParseDescriptors_Truncated(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		loop []byte
		keep int
	}{
		{"length overruns", []byte{0x0A, 0x04, 'e', 'n', 'g', 0x00, 0x56, 0x0A, 'e'}, 1},
		{"lone tag", []byte{0x0A, 0x04, 'e', 'n', 'g', 0x00, 0x56}, 1},
		{"first overruns", []byte{0x56, 0x05, 'e'}, 0},
	}
	for _, tc := range tests {
		ds, err := parseDescriptors(tc.loop)
		if err == nil {
			t.Errorf("%s: expected error", tc.name)
		}
		if len(ds) != tc.keep {
			t.Errorf("%s: kept %d descriptors, want %d", tc.name, len(ds), tc.keep)
		}
	}
}

func TestParseTeletextDescriptor_IgnoresPartialEntry(t *testing.T) {
	t.Parallel()
	b := []byte{'n', 'o', 'r', 0x2D, 0x77, 'n', 'o'}
	entries := parseTeletextDescriptor(b)
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	e := entries[0]
	if e.Type != TeletextHearingImpaired || e.Magazine != 5 || e.PageNumber() != 577 {
		t.Errorf("entry = %+v (page %d)", e, e.PageNumber())
	}
}

func TestTeletextTypeString(t *testing.T) {
	t.Parallel()
	tests := []struct {
		typ  TeletextType
		want string
	}{
		{TeletextSubtitle, "subtitle"},
		{TeletextHearingImpaired, "subtitle-hoh"},
		{TeletextInitialPage, "initial"},
		{TeletextType(0x1f), "type-0x1f"},
	}
	for _, tt := range tests {
		if got := tt.typ.String(); got != tt.want {
			t.Errorf("TeletextType(%d).String() = %q, want %q", tt.typ, got, tt.want)
		}
	}
}
