package teletext

import (
	"strings"
	"time"
)

// ProgrammeInfo is the programme identification carried by broadcast
// service data packet 8/30 format 1.
type ProgrammeInfo struct {
	Label     string
	Timestamp time.Time
}

// Programme returns the programme identification, decoded from the first
// usable 8/30 packet.
func (d *Decoder) Programme() (ProgrammeInfo, bool) {
	if d.programme == nil {
		return ProgrammeInfo{}, false
	}
	return *d.programme, true
}

func (d *Decoder) handleServiceData(p *Packet) {
	if d.programme != nil {
		return
	}
	// Designation codes 0 and 1 are format 1.
	if d.unham(p.Data[0]) >= 2 {
		return
	}

	var label strings.Builder
	for _, b := range p.Data[20:40] {
		c := d.telxToUCS2(b)
		if c < 0x20 {
			continue
		}
		label.WriteRune(rune(c))
	}

	d.programme = &ProgrammeInfo{
		Label:     strings.TrimSpace(label.String()),
		Timestamp: serviceTime(p.Data[10:16]),
	}
	d.log.Info("programme identification",
		"label", d.programme.Label,
		"timestamp", d.programme.Timestamp.Format(time.RFC3339),
		"mode", d.mode)
}

// serviceTime decodes the 8/30 date and time: a five digit Modified Julian
// Day followed by hours, minutes and seconds, all BCD with every digit
// transmitted incremented by one.
func serviceTime(b []byte) time.Time {
	mjd := int64(b[0]&0x0F)*10000 +
		int64(b[1]>>4)*1000 +
		int64(b[1]&0x0F)*100 +
		int64(b[2]>>4)*10 +
		int64(b[2]&0x0F) -
		11111

	t := (mjd - 40587) * 86400
	t += 3600 * bcdByte(b[3])
	t += 60 * bcdByte(b[4])
	t += bcdByte(b[5])
	// Undo the +1 on each of the six time digits.
	t -= 40271
	return time.Unix(t, 0).UTC()
}

func bcdByte(b byte) int64 {
	return int64(b>>4)*10 + int64(b&0x0F)
}
