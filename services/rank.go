package services

import (
	_ "embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed ranks.yaml
var defaultRanksYAML []byte

// RankBand maps the point interval [Min, Max) to one rank. Max is nil for the
// top band.
type RankBand struct {
	ID   int      `yaml:"id" json:"id"`
	Name string   `yaml:"name" json:"name"`
	Min  float64  `yaml:"min" json:"min"`
	Max  *float64 `yaml:"max,omitempty" json:"max"`
}

func (b RankBand) contains(points float64) bool {
	return points >= b.Min && (b.Max == nil || points < *b.Max)
}

// RankTable is immutable once loaded.
type RankTable struct {
	bands []RankBand
}

var (
	defaultRanks     *RankTable
	defaultRanksOnce sync.Once
)

// DefaultRankTable returns the process-wide table built from the embedded
// ranks.yaml. It panics if the embedded file is invalid.
func DefaultRankTable() *RankTable {
	defaultRanksOnce.Do(func() {
		t, err := LoadRankTable(defaultRanksYAML)
		if err != nil {
			panic(fmt.Sprintf("embedded rank table: %v", err))
		}
		defaultRanks = t
	})
	return defaultRanks
}

// LoadRankTable parses and validates a YAML rank table. The bands must
// partition [0, ∞) in increasing order.
func LoadRankTable(data []byte) (*RankTable, error) {
	var doc struct {
		Bands []RankBand `yaml:"bands"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, validationError("rank table: %v", err)
	}
	bands := doc.Bands
	if len(bands) == 0 {
		return nil, validationError("rank table has no bands")
	}
	if bands[0].Min != 0 {
		return nil, validationError("first rank band must start at 0, got %v", bands[0].Min)
	}
	for i, b := range bands {
		last := i == len(bands)-1
		if b.Max == nil && !last {
			return nil, validationError("rank band %d is unbounded but not last", b.ID)
		}
		if b.Max != nil && last {
			return nil, validationError("last rank band %d must be unbounded", b.ID)
		}
		if b.Max != nil && *b.Max <= b.Min {
			return nil, validationError("rank band %d is empty", b.ID)
		}
		if i > 0 {
			prev := bands[i-1]
			if b.ID <= prev.ID {
				return nil, validationError("rank band ids must increase: %d after %d", b.ID, prev.ID)
			}
			if *prev.Max != b.Min {
				return nil, validationError("rank band %d starts at %v, previous ends at %v", b.ID, b.Min, *prev.Max)
			}
		}
	}
	cp := make([]RankBand, len(bands))
	copy(cp, bands)
	return &RankTable{bands: cp}, nil
}

// Band returns the band containing points. Negative totals fall in the first band.
func (t *RankTable) Band(points float64) RankBand {
	for i := len(t.bands) - 1; i >= 0; i-- {
		if points >= t.bands[i].Min {
			return t.bands[i]
		}
	}
	return t.bands[0]
}

// CalculateRank returns the rank id for a point total.
func (t *RankTable) CalculateRank(points float64) int {
	return t.Band(points).ID
}

// Bands returns a copy of the table.
func (t *RankTable) Bands() []RankBand {
	cp := make([]RankBand, len(t.bands))
	copy(cp, t.bands)
	return cp
}
