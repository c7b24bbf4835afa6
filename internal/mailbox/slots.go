package mailbox

import (
	"github.com/Workiva/go-datastructures/bitarray"
)

// slot is one message body. Pooled slots have index >= 0; rendezvous
// transfers use unpooled parcels with index -1.
type slot struct {
	index int
	owner int
	n     int
	data  []byte
}

func (s *slot) payload() []byte {
	return s.data[:s.n]
}

func (s *slot) pooled() bool {
	return s.index >= 0
}

// slotPool is the fixed pool of message bodies shared by every mailbox.
// Occupancy lives in a bitmap; leasing scans forward from the last lease.
type slotPool struct {
	slots []slot
	busy  bitarray.BitArray
	used  int
	last  int
}

func newSlotPool(size, msgSize int) *slotPool {
	backing := make([]byte, size*msgSize)
	p := &slotPool{
		slots: make([]slot, size),
		busy:  bitarray.NewBitArray(uint64(size)),
		last:  -1,
	}
	for i := range p.slots {
		lo := i * msgSize
		p.slots[i] = slot{index: i, owner: -1, data: backing[lo : lo+msgSize : lo+msgSize]}
	}
	return p
}

func (p *slotPool) size() int {
	return len(p.slots)
}

func (p *slotPool) full() bool {
	return p.used >= len(p.slots)
}

// lease copies payload into the first free slot after the last lease. The
// caller checks full() first.
func (p *slotPool) lease(owner int, payload []byte) *slot {
	size := len(p.slots)
	for i := 1; i <= size; i++ {
		idx := (p.last + i) % size
		if taken, _ := p.busy.GetBit(uint64(idx)); taken {
			continue
		}
		_ = p.busy.SetBit(uint64(idx))
		p.used++
		p.last = idx
		s := &p.slots[idx]
		s.owner = owner
		s.n = copy(s.data, payload)
		return s
	}
	return nil
}

func (p *slotPool) free(s *slot) {
	if !s.pooled() {
		return
	}
	if taken, _ := p.busy.GetBit(uint64(s.index)); !taken {
		return
	}
	_ = p.busy.ClearBit(uint64(s.index))
	s.owner = -1
	s.n = 0
	p.used--
}

func newParcel(owner int, payload []byte) *slot {
	data := make([]byte, len(payload))
	copy(data, payload)
	return &slot{index: -1, owner: owner, n: len(data), data: data}
}
