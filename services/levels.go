package services

import (
	"context"
	"log"

	"engagement-rewards-system/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type LevelService struct {
	DB    *gorm.DB
	Ranks *RankTable
}

func NewLevelService(db *gorm.DB, ranks *RankTable) *LevelService {
	return &LevelService{DB: db, Ranks: ranks}
}

// Seed writes the rank table into the levels table. Existing rows are left
// alone, so running it twice is harmless.
func (s *LevelService) Seed(ctx context.Context) (int64, error) {
	bands := s.Ranks.Bands()
	levels := make([]models.Level, 0, len(bands))
	for _, b := range bands {
		levels = append(levels, models.Level{LevelID: b.ID, Name: b.Name, Min: b.Min, Max: b.Max})
	}
	res := s.DB.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "level_id"}}, DoNothing: true}).
		Create(&levels)
	if res.Error != nil {
		return 0, persistenceError("seed levels", res.Error)
	}
	if res.RowsAffected > 0 {
		log.Printf("✅ [LEVELS] Seeded %d level(s)", res.RowsAffected)
	} else {
		log.Println("[LEVELS] Levels already seeded")
	}
	return res.RowsAffected, nil
}

func (s *LevelService) List(ctx context.Context) ([]models.Level, error) {
	var levels []models.Level
	if err := s.DB.WithContext(ctx).Order("level_id ASC").Find(&levels).Error; err != nil {
		return nil, persistenceError("list levels", err)
	}
	return levels, nil
}
