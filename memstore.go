package tracker

import (
	"slices"
	"sync"
)

// MemoryStore is an in-memory LedgerStore.
//
// Rows are always kept in chronological order. It is the reference
// implementation and the store used in tests; the sqlitestore package
// provides the durable one.
type MemoryStore struct {
	mu  sync.Mutex
	txs []LedgerTransaction
}

// NewMemoryStore creates an empty in-memory ledger store.
func NewMemoryStore(txs ...LedgerTransaction) *MemoryStore {
	s := &MemoryStore{txs: make([]LedgerTransaction, 0, len(txs))}
	s.Append(txs...)
	return s
}

// Append adds rows and maintains the chronological order of the ledger.
func (s *MemoryStore) Append(txs ...LedgerTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txs = append(s.txs, txs...)
	s.stableSort()
	return nil
}

// stableSort sorts the ledger chronologically. The sort is stable, so rows
// at the same instant keep their relative order of insertion.
func (s *MemoryStore) stableSort() {
	slices.SortStableFunc(s.txs, compareChrono)
}

// Get returns the row with the given id.
func (s *MemoryStore) Get(id string) (LedgerTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tx := range s.txs {
		if tx.ID == id {
			return tx, nil
		}
	}
	return LedgerTransaction{}, notFound("transaction", id)
}

// Query returns the rows matching the filter, in chronological order.
func (s *MemoryStore) Query(f Filter) ([]LedgerTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []LedgerTransaction
	for _, tx := range s.txs {
		if f.Matches(tx) {
			out = append(out, tx)
		}
	}
	return out, nil
}

// Update mutates the matcher state of one row.
func (s *MemoryStore) Update(id string, fields Fields) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, tx := range s.txs {
		if tx.ID != id {
			continue
		}
		if fields.TransferGroupID != nil {
			tx.TransferGroupID = *fields.TransferGroupID
		}
		if fields.Separated != nil {
			tx.Separated = *fields.Separated
		}
		s.txs[i] = tx
		return nil
	}
	return notFound("transaction", id)
}

// Delete removes rows by id. Unknown ids are ignored.
func (s *MemoryStore) Delete(ids ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txs = slices.DeleteFunc(s.txs, func(tx LedgerTransaction) bool {
		return slices.Contains(ids, tx.ID)
	})
	return nil
}
