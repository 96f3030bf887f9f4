package pdu

// ring queues variable size PDUs in one backing array. Every PDU is stored
// contiguously at its real size; room that doesn't fit behind the last PDU is
// taken from the start of the array.
type ring struct {
	mem   []byte
	spans []span

	// room handed out by allocate, alloc is -1 if none
	alloc  int
	allocN int
}

type span struct {
	off, n int
}

func newRing(capacity int) ring {
	return ring{mem: make([]byte, capacity), alloc: -1}
}

func (r *ring) reset() {
	r.spans = r.spans[:0]
	r.alloc = -1
}

func (r *ring) count() int {
	return len(r.spans)
}

// room returns the offset of need contiguous free bytes, or -1.
func (r *ring) room(need int) int {
	if need <= 0 || need > len(r.mem) {
		return -1
	}
	if len(r.spans) == 0 {
		return 0
	}

	head := r.spans[0].off
	last := r.spans[len(r.spans)-1]
	end := last.off + last.n

	if last.off >= head {
		if len(r.mem)-end >= need {
			return end
		}
		// wrap
		if head >= need {
			return 0
		}
		return -1
	}
	if head-end >= need {
		return end
	}
	return -1
}

// allocate returns need bytes of free room, nil when there is none.
func (r *ring) allocate(need int) []byte {
	off := r.room(need)
	if off < 0 {
		return nil
	}
	r.alloc, r.allocN = off, need
	return r.mem[off : off+need]
}

// owns reports whether p starts at the room returned by the last allocate.
func (r *ring) owns(p []byte) bool {
	return r.alloc >= 0 && len(p) > 0 && len(p) <= r.allocN && &r.mem[r.alloc] == &p[0]
}

// push queues the first n bytes of the allocated room. n must not exceed
// the allocated size.
func (r *ring) push(n int) {
	r.spans = append(r.spans, span{off: r.alloc, n: n})
	r.alloc = -1
}

func (r *ring) front() []byte {
	if len(r.spans) == 0 {
		return nil
	}
	s := r.spans[0]
	return r.mem[s.off : s.off+s.n]
}

func (r *ring) pop() {
	switch len(r.spans) {
	case 0:
	case 1:
		r.spans = r.spans[:0]
	default:
		r.spans = r.spans[1:]
	}
}
