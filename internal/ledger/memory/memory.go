// Package memory keeps the invoice ledger in process.
package memory

import (
	"context"
	"fmt"
	"sync"

	"freelance/internal/ledger"
	"freelance/internal/ports"
)

type Ledger struct {
	mu   sync.Mutex
	rows [][]any
	log  []ports.LedgerEntry
}

var _ ports.LedgerWriter = (*Ledger)(nil)

func New() *Ledger {
	return &Ledger{}
}

// Append returns a synthetic row reference.
func (l *Ledger) Append(_ context.Context, e ports.LedgerEntry) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.log = append(l.log, e)
	l.rows = append(l.rows, ledger.Row(e))
	return fmt.Sprintf("mem:%d", len(l.rows)), nil
}

func (l *Ledger) Entries() []ports.LedgerEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]ports.LedgerEntry(nil), l.log...)
}

// Rows returns the rendered rows in append order.
func (l *Ledger) Rows() [][]any {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([][]any(nil), l.rows...)
}
