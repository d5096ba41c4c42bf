package analytics

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"freelance/internal/cache"
	"freelance/internal/core"
)

// Memo caches Stats by a content hash of the snapshot and asOf. Any change
// to any row produces a different key, so entries never need invalidation;
// the backing cache's TTL bounds their lifetime.
type Memo struct {
	cache cache.Cache[Stats]
}

func NewMemo(c cache.Cache[Stats]) *Memo {
	return &Memo{cache: c}
}

// Compute returns cached Stats for an identical snapshot or aggregates and
// stores them. The boolean reports a cache hit.
func (m *Memo) Compute(clients []core.Client, projects []core.Project, invoices []core.Invoice, asOf time.Time) (Stats, bool, error) {
	key, err := SnapshotKey(clients, projects, invoices, asOf)
	if err != nil {
		stats, err := ComputeDashboardStats(clients, projects, invoices, asOf)
		return stats, false, err
	}
	if stats, ok := m.cache.Get(key); ok {
		return stats, true, nil
	}
	stats, err := ComputeDashboardStats(clients, projects, invoices, asOf)
	if err != nil {
		return Stats{}, false, err
	}
	m.cache.Set(key, stats)
	return stats, false, nil
}

// SnapshotKey hashes the three collections and asOf truncated to the
// second. The zone offset is part of the key because month bucketing
// depends on it.
func SnapshotKey(clients []core.Client, projects []core.Project, invoices []core.Invoice, asOf time.Time) (string, error) {
	h := sha256.New()
	enc := json.NewEncoder(h)
	for _, v := range []any{clients, projects, invoices} {
		if err := enc.Encode(v); err != nil {
			return "", err
		}
	}
	h.Write([]byte(asOf.Truncate(time.Second).Format(time.RFC3339)))
	return "stats:" + hex.EncodeToString(h.Sum(nil)), nil
}
