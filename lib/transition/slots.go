// Package transition holds the two timing primitives of a take: the
// ping-pong slot allocator and the progress driver.
package transition

// Slot names one of the two alternating buffers.
type Slot uint8

const (
	SlotA Slot = 0
	SlotB Slot = 1
)

func (s Slot) Other() Slot { return 1 - s }

// Slots records which slot last received the active image. The output of
// take N is read as the outgoing input of take N+1 while take N+1 renders
// into the other slot, so no session reads and writes the same buffer.
type Slots struct {
	current Slot
	takes   uint64
}

// Allocate returns the roles for a new take and flips the flag. It is called
// exactly once per started take, including immediate switches.
func (s *Slots) Allocate() (outgoing, incoming Slot) {
	outgoing, incoming = s.current, s.current.Other()
	s.current = incoming
	s.takes++
	return outgoing, incoming
}

// Current is the slot holding the most recently taken source.
func (s *Slots) Current() Slot { return s.current }

// Takes counts allocations since construction.
func (s *Slots) Takes() uint64 { return s.takes }
