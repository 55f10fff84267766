package teletext

import (
	"fmt"
	"sync"
)

// Page is a teletext page address in BCD: the magazine in bits 8-11 and
// the two page digits in bits 0-7, so page 888 is 0x888.
type Page uint16

// PageFromDecimal converts a decimal page number (100-899) to a Page.
func PageFromDecimal(dec int) (Page, error) {
	if dec < 100 || dec > 899 {
		return 0, fmt.Errorf("teletext: page %d out of range 100-899", dec)
	}
	return Page(DecToBCD(dec)), nil
}

// Magazine returns the magazine number, 1 to 8.
func (p Page) Magazine() int {
	return int(p>>8) & 0xF
}

// Number returns the BCD page byte within the magazine.
func (p Page) Number() int {
	return int(p) & 0xFF
}

// Decimal returns the page as a decimal number.
func (p Page) Decimal() int {
	return BCDToDec(uint64(p))
}

func (p Page) String() string {
	return fmt.Sprintf("%03X", uint16(p))
}

// BCDToDec converts a packed BCD value to decimal.
func BCDToDec(bcd uint64) int {
	var dec, pwr uint64 = 0, 1
	for ; bcd > 0; bcd >>= 4 {
		dec += (bcd & 0xF) * pwr
		pwr *= 10
	}
	return int(dec)
}

// DecToBCD converts a three digit decimal number to packed BCD.
func DecToBCD(dec int) int {
	return (dec/100)<<8 | (dec/10%10)<<4 | dec%10
}

// packetAddress decodes the magazine and row of a packet. Magazine 0 on the
// wire is magazine 8.
func packetAddress(p *Packet) (m, y int) {
	addr := int(unhamOrZero(p.Address[1]))<<4 | int(unhamOrZero(p.Address[0]))
	m = addr & 0x7
	if m == 0 {
		m = 8
	}
	return m, (addr >> 3) & 0x1F
}

// SubtitlePageOf returns the decimal page number announced by a page
// header with the subtitle flag (C6) set, or -1 for any other packet.
func SubtitlePageOf(p *Packet) int {
	m, y := packetAddress(p)
	if y != 0 {
		return -1
	}
	i := int(unhamOrZero(p.Data[1]))<<4 | int(unhamOrZero(p.Data[0]))
	subtitle := unhamOrZero(p.Data[5])&0x08 != 0
	if !subtitle || i >= 0xFF {
		return -1
	}
	return BCDToDec(uint64(m<<8 | i))
}

func unhamOrZero(b byte) byte {
	n := Unham84(b)
	if n == Ham84Error {
		return 0
	}
	return n
}

// CCMap records, per page byte, which magazines have flagged that page as a
// subtitle page. It only ever gains bits and is safe to share between
// decoders.
type CCMap struct {
	mu   sync.RWMutex
	bits [256]byte
}

// Mark records the subtitle flag of a header for page byte i in magazine m.
func (c *CCMap) Mark(i byte, m int, subtitle bool) {
	if !subtitle || m < 1 || m > 8 {
		return
	}
	c.mu.Lock()
	c.bits[i] |= 1 << (m - 1)
	c.mu.Unlock()
}

// IsSubtitle reports whether page p has been flagged as carrying subtitles.
func (c *CCMap) IsSubtitle(p Page) bool {
	m := p.Magazine()
	if m < 1 || m > 8 {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.bits[p.Number()]&(1<<(m-1)) != 0
}

// Pages returns every flagged page in ascending order.
func (c *CCMap) Pages() []Page {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var pages []Page
	for m := 1; m <= 8; m++ {
		for i := range c.bits {
			if c.bits[i]&(1<<(m-1)) != 0 {
				pages = append(pages, Page(m<<8|i))
			}
		}
	}
	return pages
}
