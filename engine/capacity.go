/*
capacity.go - Capacity ledger

PURPOSE:
  Guards a batch's enrolled counter. The counter is the only shared
  mutable resource in the engine that concurrent requests contend for,
  so the check-and-increment is delegated to the store as one atomic
  operation rather than read-then-write from here.

INVARIANT:
  enrolled <= max_capacity whenever max_capacity is set, under any
  interleaving of concurrent activations. When N requests race for the
  last slot, exactly one increment succeeds.

NO DECREMENT:
  Expiry does not release a slot. Administrative removal, if any, is a
  separate out-of-scope operation; nothing here exposes a decrement.

SEE ALSO:
  - store.go:   TryIncrementEnrolled contract
  - service.go: Reserves a slot inside the activation transaction
*/
package engine

import "context"

// =============================================================================
// CAPACITY LEDGER
// =============================================================================

// CapacityLedger reserves enrollment slots against batch headcount caps.
type CapacityLedger struct {
	Store Store
}

// Reserve consumes one slot in the batch. Returns *CapacityError
// (wrapping ErrCapacityExceeded) when the batch is full, or
// *NotFoundError when the batch does not exist.
//
// Call this inside the activation transaction so a later failure rolls
// the slot back.
func (cl *CapacityLedger) Reserve(ctx context.Context, batchID BatchID) error {
	ok, err := cl.Store.TryIncrementEnrolled(ctx, batchID)
	if err != nil {
		return err
	}
	if !ok {
		b, err := cl.Store.GetBatch(ctx, batchID)
		if err != nil {
			return err
		}
		max := 0
		if b.MaxCapacity != nil {
			max = *b.MaxCapacity
		}
		return &CapacityError{BatchID: batchID, Max: max}
	}
	return nil
}
