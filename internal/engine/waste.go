package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"larder/internal/models"
	"larder/internal/store"
)

// WasteEntry is one expired batch that still holds weight. Expired batches
// are never deleted; they stay on record as waste candidates until the
// kitchen documents the write-off.
type WasteEntry struct {
	Batch         models.IngredientBatch `json:"batch"`
	StrandedValue decimal.Decimal        `json:"stranded_value"`
}

// WasteReport lists every waste candidate at the reference time with the
// total purchase value stranded in them.
type WasteReport struct {
	Reference     time.Time       `json:"reference"`
	Entries       []WasteEntry    `json:"entries"`
	StrandedValue decimal.Decimal `json:"stranded_value"`
}

// BuildWasteReport scans the batch catalog for expired batches with remaining
// weight. Read-only; documenting the write-off stays a manual step.
func BuildWasteReport(ctx context.Context, batches store.BatchStore, now time.Time) (WasteReport, error) {
	report := WasteReport{Reference: now, StrandedValue: decimal.Zero}

	all, err := batches.ListBatches(ctx)
	if err != nil {
		return report, fmt.Errorf("list batches: %w", err)
	}
	for _, b := range all {
		if b.Status(now) != models.BatchStatusExpired || !b.Weight.IsPositive() {
			continue
		}
		value := b.StrandedValue()
		report.Entries = append(report.Entries, WasteEntry{Batch: b, StrandedValue: value})
		report.StrandedValue = report.StrandedValue.Add(value)
	}
	return report, nil
}
