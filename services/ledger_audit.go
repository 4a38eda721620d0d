package services

import (
	"context"
	"log"
	"math"
)

const pointsEpsilon = 1e-6

// LedgerDrift is a user whose stored totals disagree with the ledger or the
// rank table.
type LedgerDrift struct {
	UserID       string  `json:"user_id"`
	ExternalID   string  `json:"external_id"`
	Points       float64 `json:"points"`
	LedgerPoints float64 `json:"ledger_points"`
	Rank         int     `json:"rank"`
	ExpectedRank int     `json:"expected_rank"`
}

// LedgerAuditor checks that every user's points equal the sum of their
// ledger entries and that rank matches points. It only reports.
type LedgerAuditor struct {
	Ledger *LedgerService
	Ranks  *RankTable
}

func NewLedgerAuditor(ledger *LedgerService, ranks *RankTable) *LedgerAuditor {
	return &LedgerAuditor{Ledger: ledger, Ranks: ranks}
}

func (a *LedgerAuditor) Audit(ctx context.Context) ([]LedgerDrift, error) {
	var rows []struct {
		ID           string
		ExternalID   string
		Points       float64
		Rank         int
		LedgerPoints float64
	}
	err := a.Ledger.DB.WithContext(ctx).Raw(`
		SELECT u.id, u.external_id, u.points, u.rank, COALESCE(SUM(a.points), 0) AS ledger_points
		FROM users u
		LEFT JOIN activities a ON a.beneficiary_id = u.id
		GROUP BY u.id, u.external_id, u.points, u.rank
	`).Scan(&rows).Error
	if err != nil {
		return nil, persistenceError("audit ledger", err)
	}

	var drifts []LedgerDrift
	for _, r := range rows {
		expected := a.Ranks.CalculateRank(r.Points)
		if math.Abs(r.Points-r.LedgerPoints) > pointsEpsilon || r.Rank != expected {
			drifts = append(drifts, LedgerDrift{
				UserID:       r.ID,
				ExternalID:   r.ExternalID,
				Points:       r.Points,
				LedgerPoints: r.LedgerPoints,
				Rank:         r.Rank,
				ExpectedRank: expected,
			})
		}
	}

	if len(drifts) > 0 {
		log.Printf("⚠️ [AUDIT] %d of %d user(s) drift from the ledger", len(drifts), len(rows))
		for _, d := range drifts {
			log.Printf("   → %s: points=%v ledger=%v rank=%d expected=%d", d.ExternalID, d.Points, d.LedgerPoints, d.Rank, d.ExpectedRank)
		}
	} else {
		log.Printf("✅ [AUDIT] Ledger consistent for %d user(s)", len(rows))
	}
	return drifts, nil
}
