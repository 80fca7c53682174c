package matchmaking

import "fmt"

// PairingTable holds the symmetric partner relation. Entries are always
// inserted and removed as a matched set.
type PairingTable struct {
	partners map[string]string
}

func NewPairingTable() *PairingTable {
	return &PairingTable{partners: make(map[string]string)}
}

func (t *PairingTable) Partner(id string) (string, bool) {
	partner, ok := t.partners[id]
	return partner, ok
}

func (t *PairingTable) Has(id string) bool {
	_, ok := t.partners[id]
	return ok
}

// Mutual reports whether a and b currently point at each other.
func (t *PairingTable) Mutual(a, b string) bool {
	pa, ok := t.partners[a]
	if !ok || pa != b {
		return false
	}
	pb, ok := t.partners[b]
	return ok && pb == a
}

func (t *PairingTable) Link(a, b string) error {
	if a == b {
		return fmt.Errorf("%w: %s", ErrSelfPairing, a)
	}
	if t.Has(a) {
		return fmt.Errorf("%w: %s", ErrAlreadyPaired, a)
	}
	if t.Has(b) {
		return fmt.Errorf("%w: %s", ErrAlreadyPaired, b)
	}
	t.partners[a] = b
	t.partners[b] = a
	return nil
}

// Unlink removes id's entry and, if the relation was mutual, the partner's
// entry too. It returns the partner id id was mapped to.
func (t *PairingTable) Unlink(id string) (string, bool) {
	partner, ok := t.partners[id]
	if !ok {
		return "", false
	}
	delete(t.partners, id)
	if back, ok := t.partners[partner]; ok && back == id {
		delete(t.partners, partner)
	}
	return partner, true
}

func (t *PairingTable) Len() int {
	return len(t.partners)
}
