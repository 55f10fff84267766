package mpegts

import "fmt"

// parseDescriptors walks a descriptor loop. A descriptor whose length runs
// past the loop ends it with an error; the descriptors before it are kept.
func parseDescriptors(b []byte) ([]*Descriptor, error) {
	var ds []*Descriptor
	for off := 0; off < len(b); {
		if off+2 > len(b) {
			return ds, fmt.Errorf("mpegts: truncated descriptor header at %d", off)
		}
		tag, length := b[off], int(b[off+1])
		end := off + 2 + length
		if end > len(b) {
			return ds, fmt.Errorf("mpegts: descriptor 0x%02X length %d overruns loop", tag, length)
		}

		d := &Descriptor{Tag: tag, Data: b[off+2 : end]}
		if tag == DescriptorTagTeletext || tag == DescriptorTagVBITeletext {
			d.Teletext = parseTeletextDescriptor(d.Data)
		}
		ds = append(ds, d)
		off = end
	}
	return ds, nil
}

// parseTeletextDescriptor decodes the 5-byte entries of a teletext
// descriptor (EN 300 468, 6.2.43): ISO 639 language, teletext type and
// magazine, and BCD page number.
func parseTeletextDescriptor(b []byte) []TeletextEntry {
	var entries []TeletextEntry
	for off := 0; off+5 <= len(b); off += 5 {
		entries = append(entries, TeletextEntry{
			Language: string(b[off : off+3]),
			Type:     TeletextType(b[off+3] >> 3),
			Magazine: b[off+3] & 0x07,
			Page:     b[off+4],
		})
	}
	return entries
}
