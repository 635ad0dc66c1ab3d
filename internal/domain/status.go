package domain

import (
	"errors"
	"fmt"
)

// Status is the order lifecycle state.
type Status string

const (
	StatusPending   Status = "Pending"   // placed, awaiting staff approval
	StatusReceived  Status = "Received"  // approved, kitchen may serve items
	StatusPreparing Status = "Preparing" // at least one line served
	StatusReady     Status = "Ready"     // every line served
	StatusServed    Status = "Served"    // handed over; session countdown starts
	StatusCompleted Status = "Completed" // archival only, never on a live order
)

var ErrInvalidTransition = errors.New("invalid status transition")

// transitions holds the legal forward moves of the lifecycle. Completed is
// absent on purpose: it is reached only through the archive dual-write.
var transitions = map[Status][]Status{
	StatusPending:   {StatusReceived},
	StatusReceived:  {StatusPreparing, StatusReady, StatusServed},
	StatusPreparing: {StatusReady, StatusServed},
	StatusReady:     {StatusServed},
	StatusServed:    {},
}

// ValidStatus reports whether s is a known live-order status.
func ValidStatus(s Status) bool {
	_, ok := transitions[s]
	return ok
}

// CanTransition reports whether from -> to is a legal single step.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Approve moves a pending order to Received.
func (o *Order) Approve() error {
	if o.Status != StatusPending {
		return fmt.Errorf("%w: approve from %s", ErrInvalidTransition, o.Status)
	}
	o.Status = StatusReceived
	return nil
}

// MarkItemServed marks one line served and advances the implicit kitchen
// states: the first served line moves the order to Preparing, the last one to
// Ready. Marking an already-served line is a no-op. Items may not be served
// while the order is still Pending.
func (o *Order) MarkItemServed(idx int) error {
	if o.Status == StatusPending {
		return fmt.Errorf("%w: order not yet approved", ErrInvalidTransition)
	}
	if idx < 0 || idx >= len(o.Items) {
		return fmt.Errorf("item index %d out of range", idx)
	}
	if o.Items[idx].Status == ItemServed {
		return nil
	}
	o.Items[idx].Status = ItemServed
	switch {
	case o.AllServed():
		if o.Status == StatusReceived || o.Status == StatusPreparing {
			o.Status = StatusReady
		}
	case o.Status == StatusReceived:
		o.Status = StatusPreparing
	}
	return nil
}

// Serve is the explicit staff "final serve": any approved order goes to
// Served and every remaining line is marked served with it.
func (o *Order) Serve() error {
	switch o.Status {
	case StatusReceived, StatusPreparing, StatusReady:
	default:
		return fmt.Errorf("%w: serve from %s", ErrInvalidTransition, o.Status)
	}
	for i := range o.Items {
		o.Items[i].Status = ItemServed
	}
	o.Status = StatusServed
	return nil
}

// Append adds new lines to the order and resets it to Pending so staff
// approve the addition, whatever state it was in. TotalPrice is bumped
// additively, never recomputed from scratch.
func (o *Order) Append(items []CartItem) error {
	if len(items) == 0 {
		return errors.New("nothing to append")
	}
	for _, it := range items {
		if it.Quantity < 1 {
			return fmt.Errorf("invalid quantity %d for %q", it.Quantity, it.Name)
		}
		it.Status = ItemPending
		o.Items = append(o.Items, it)
		o.TotalPrice += it.Total()
	}
	o.Status = StatusPending
	return nil
}
