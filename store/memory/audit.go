// Package memory keeps the audit trail in an ordered in-memory index. It
// serves tests and single-process tools.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/hengadev/remotecare/audit"
	"github.com/tidwall/btree"
)

// AuditStore orders entries by time added, then by id.
type AuditStore struct {
	mu      sync.RWMutex
	entries *btree.BTree
	ids     map[string]bool
}

func NewAuditStore() *AuditStore {
	return &AuditStore{
		entries: btree.NewNonConcurrent(byAddedOn),
		ids:     map[string]bool{},
	}
}

func byAddedOn(a, b interface{}) bool {
	e1, e2 := a.(*audit.Entry), b.(*audit.Entry)
	if !e1.AddedOn.Equal(e2.AddedOn) {
		return e1.AddedOn.Before(e2.AddedOn)
	}
	return bytes.Compare(e1.ID[:], e2.ID[:]) < 0
}

func (s *AuditStore) Append(ctx context.Context, e *audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ids[e.ID.String()] {
		return fmt.Errorf("audit entry %s already stored", e.ID)
	}
	cp := *e
	if e.EncryptionKeyID != nil {
		id := *e.EncryptionKeyID
		cp.EncryptionKeyID = &id
	}
	s.entries.Set(&cp)
	s.ids[e.ID.String()] = true
	return nil
}

func (s *AuditStore) List(ctx context.Context, f audit.Filter) ([]*audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var pivot interface{}
	if !f.Since.IsZero() {
		pivot = &audit.Entry{AddedOn: f.Since}
	}
	var out []*audit.Entry
	s.entries.Ascend(pivot, func(i interface{}) bool {
		e := i.(*audit.Entry)
		if !f.Until.IsZero() && !e.AddedOn.Before(f.Until) {
			return false
		}
		if f.Match(e) {
			cp := *e
			out = append(out, &cp)
		}
		return f.Limit <= 0 || len(out) < f.Limit
	})
	return out, ctx.Err()
}

// Len returns the number of stored entries.
func (s *AuditStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries.Len()
}
