package process

import "strconv"

// PID identifies a process in the table. Valid pids are positive.
type PID int

// NoPID is returned where no process applies.
const NoPID PID = 0

func (pid PID) String() string {
	return strconv.Itoa(int(pid))
}

// Slot returns the table slot the pid occupies in a table of the given size.
func (pid PID) Slot(size int) int {
	return int(pid) % size
}
