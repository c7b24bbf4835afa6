// Package mailbox implements the kernel's bounded mailboxes: a fixed table
// of mailbox descriptors, a shared pool of message slots, per-mailbox FIFO
// wait queues of blocked processes and the blocking and conditional
// send/receive protocol that moves messages between them.
//
// All state belongs to one Table. Every exported Table method is an entry
// point: it halts the machine unless called in kernel mode, and runs inside
// a critical section that holds the table lock with interrupts masked. The
// only points where a caller gives up the section are the blocking slow
// paths of Send and Recv.
package mailbox

// mailbox is one table entry.
type mailbox struct {
	id       int
	capacity int
	slotSize int

	// live marks the entry as claimed. It stays set after release until the
	// last waiter has left.
	live     bool
	released bool

	messages  messageQueue
	producers waitQueue
	consumers waitQueue

	// producerWoken and consumerWoken are the wake tokens: set while one
	// waiter of that role has been made runnable and has not finished its
	// turn.
	producerWoken bool
	consumerWoken bool
}

func (m *mailbox) rendezvous() bool {
	return m.capacity == 0
}

func (m *mailbox) used() int {
	return m.messages.len()
}

func (m *mailbox) idle() bool {
	return m.producers.empty() && m.consumers.empty() && !m.producerWoken && !m.consumerWoken
}

// Stat is a snapshot of one mailbox.
type Stat struct {
	ID        int
	Capacity  int
	SlotSize  int
	Used      int
	Producers int
	Consumers int
	Released  bool
}

// Usage is a snapshot of the whole table.
type Usage struct {
	Mailboxes    int
	MaxMailboxes int
	SlotsUsed    int
	MaxSlots     int
}
