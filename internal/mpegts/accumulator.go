package mpegts

import "slices"

const pidPAT = 0x0000

// pidTable tracks which PIDs carry PMT sections, learned from the PAT.
type pidTable struct {
	pmt map[uint16]bool
}

func newPIDTable() *pidTable {
	return &pidTable{pmt: make(map[uint16]bool)}
}

func (t *pidTable) learn(pat *PATData) {
	for _, p := range pat.Programs {
		t.pmt[p.ProgramMapID] = true
	}
}

func (t *pidTable) isPSI(pid uint16) bool {
	return pid == pidPAT || t.pmt[pid]
}

// packetAccumulator buffers the packets of one PID until a payload unit is
// complete: the next unit start, a finished PSI section, or a bounded PES
// packet that has received all its bytes.
type packetAccumulator struct {
	pid     uint16
	pids    *pidTable
	packets []*Packet
	size    int
}

func newPacketAccumulator(pid uint16, pids *pidTable) *packetAccumulator {
	return &packetAccumulator{pid: pid, pids: pids}
}

func (pa *packetAccumulator) add(p *Packet) []*Packet {
	if p.Header.TransportErrorIndicator {
		pa.reset()
		return nil
	}
	if !p.Header.HasPayload {
		return nil
	}

	// A signalled discontinuity makes a CC jump expected.
	if n := len(pa.packets); n > 0 && !p.Header.DiscontinuityIndicator {
		prev := pa.packets[n-1].Header.ContinuityCounter
		if p.Header.ContinuityCounter != (prev+1)&0x0F {
			if p.Header.ContinuityCounter == prev {
				return nil // duplicate
			}
			pa.reset()
		}
	}

	var flushed []*Packet
	if p.Header.PayloadUnitStartIndicator {
		flushed = pa.flush()
	} else if len(pa.packets) == 0 {
		// Continuation without a start: the unit head was lost.
		return nil
	}

	pa.packets = append(pa.packets, p)
	pa.size += len(p.Payload)

	if flushed == nil && pa.complete() {
		flushed = pa.flush()
	}
	return flushed
}

func (pa *packetAccumulator) complete() bool {
	if pa.pids.isPSI(pa.pid) {
		return isPSIComplete(pa.packets)
	}
	need := pesLength(pa.packets[0].Payload)
	return need > 0 && pa.size >= need
}

func (pa *packetAccumulator) reset() {
	pa.packets = nil
	pa.size = 0
}

func (pa *packetAccumulator) flush() []*Packet {
	if len(pa.packets) == 0 {
		return nil
	}
	flushed := pa.packets
	pa.reset()
	return flushed
}

func joinPayloads(packets []*Packet) []byte {
	n := 0
	for _, p := range packets {
		n += len(p.Payload)
	}
	payload := make([]byte, 0, n)
	for _, p := range packets {
		payload = append(payload, p.Payload...)
	}
	return payload
}

// isPSIComplete reports whether the accumulated payloads hold every
// section they start.
func isPSIComplete(packets []*Packet) bool {
	payload := joinPayloads(packets)
	if len(payload) < 1 {
		return false
	}
	offset := 1 + int(payload[0])
	if offset >= len(payload) {
		return false
	}

	for offset < len(payload) {
		if payload[offset] == 0xFF {
			return true
		}
		if offset+3 > len(payload) {
			return false
		}
		if payload[offset+1]&0x80 == 0 {
			return true // padding
		}
		next := offset + 3 + sectionLength(payload[offset:])
		if next > len(payload) {
			return false
		}
		offset = next
	}
	return true
}

// packetPool manages one accumulator per PID.
type packetPool struct {
	accs map[uint16]*packetAccumulator
	pids *pidTable
}

func newPacketPool(pids *pidTable) *packetPool {
	return &packetPool{
		accs: make(map[uint16]*packetAccumulator),
		pids: pids,
	}
}

func (pp *packetPool) add(p *Packet) []*Packet {
	acc, ok := pp.accs[p.Header.PID]
	if !ok {
		acc = newPacketAccumulator(p.Header.PID, pp.pids)
		pp.accs[p.Header.PID] = acc
	}
	return acc.add(p)
}

// dump flushes every accumulator in PID order, so the PAT is seen before
// any PMT.
func (pp *packetPool) dump() [][]*Packet {
	pids := make([]uint16, 0, len(pp.accs))
	for pid := range pp.accs {
		pids = append(pids, pid)
	}
	slices.Sort(pids)

	var all [][]*Packet
	for _, pid := range pids {
		if packets := pp.accs[pid].flush(); packets != nil {
			all = append(all, packets)
		}
	}
	return all
}
