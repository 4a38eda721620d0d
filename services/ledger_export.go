package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"engagement-rewards-system/models"
)

// ObjectStore is where exported ledger batches are written.
type ObjectStore interface {
	PutObject(ctx context.Context, key string, body []byte, contentType string) error
}

// DefaultExportSettle is how old an entry must be before it is exported.
const DefaultExportSettle = time.Minute

// LedgerExporter ships ledger entries created since the previous export to
// object storage as JSON lines. Progress is kept in ledger_exports, so a
// restart resumes where the last successful batch ended.
//
// created_at is stamped at insert, not at commit, so only entries older than
// Settle are read. The cursor never passes an entry whose transaction is
// still open, as long as reward transactions finish within Settle.
type LedgerExporter struct {
	Ledger    *LedgerService
	Store     ObjectStore
	Prefix    string
	BatchSize int
	Settle    time.Duration
	Now       func() time.Time
}

func NewLedgerExporter(ledger *LedgerService, store ObjectStore, prefix string) *LedgerExporter {
	if prefix == "" {
		prefix = "ledger"
	}
	return &LedgerExporter{
		Ledger:    ledger,
		Store:     store,
		Prefix:    prefix,
		BatchSize: 5000,
		Settle:    DefaultExportSettle,
		Now:       time.Now,
	}
}

// Export writes at most one batch and returns the number of entries shipped.
func (e *LedgerExporter) Export(ctx context.Context) (int, error) {
	db := e.Ledger.DB.WithContext(ctx)

	var last models.LedgerExport
	if err := db.Order("through DESC, through_id DESC").Limit(1).Find(&last).Error; err != nil {
		return 0, persistenceError("read export cursor", err)
	}

	now := time.Now
	if e.Now != nil {
		now = e.Now
	}
	q := db.Model(&models.Activity{}).Where("created_at <= ?", now().Add(-e.Settle))
	if last.ID != "" {
		q = q.Where("created_at > ? OR (created_at = ? AND id > ?)", last.Through, last.Through, last.ThroughID)
	}
	var entries []models.Activity
	if err := q.Order("created_at ASC, id ASC").
		Limit(e.BatchSize).
		Find(&entries).Error; err != nil {
		return 0, persistenceError("read ledger batch", err)
	}
	if len(entries) == 0 {
		log.Println("[EXPORT] ➡️ No new ledger entries.")
		return 0, nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i := range entries {
		if err := enc.Encode(&entries[i]); err != nil {
			return 0, fmt.Errorf("encode ledger entry %s: %w", entries[i].ID, err)
		}
	}

	tail := entries[len(entries)-1]
	through := tail.CreatedAt
	key := fmt.Sprintf("%s/%s/%d.jsonl", e.Prefix, through.UTC().Format("2006/01/02"), through.UnixNano())
	if err := e.Store.PutObject(ctx, key, buf.Bytes(), "application/x-ndjson"); err != nil {
		log.Printf("❌ [EXPORT] Upload of %d entries failed: %v", len(entries), err)
		return 0, err
	}

	if err := db.Create(&models.LedgerExport{
		ObjectKey: key,
		Through:   through,
		ThroughID: tail.ID,
		Entries:   int64(len(entries)),
	}).Error; err != nil {
		return 0, persistenceError("record export", err)
	}

	log.Printf("✅ [EXPORT] Shipped %d ledger entries to %s", len(entries), key)
	return len(entries), nil
}
