package services

import (
	"engagement-rewards-system/models"

	"gorm.io/gorm"
)

// creditPoints adds amount to a user's points inside tx and rewrites the rank
// from the new total. extra carries additional column updates (counters).
// The increment is a single UPDATE so concurrent credits never lose points.
func creditPoints(tx *gorm.DB, ranks *RankTable, userID string, amount float64, extra map[string]interface{}) (*models.User, error) {
	updates := map[string]interface{}{
		"points": gorm.Expr("points + ?", amount),
	}
	for k, v := range extra {
		updates[k] = v
	}
	res := tx.Model(&models.User{}).Where("id = ?", userID).Updates(updates)
	if res.Error != nil {
		return nil, persistenceError("credit points", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrUserNotFound
	}

	var user models.User
	if err := tx.First(&user, "id = ?", userID).Error; err != nil {
		return nil, persistenceError("reload user after credit", err)
	}
	rank := ranks.CalculateRank(user.Points)
	if rank != user.Rank {
		if err := tx.Model(&models.User{}).Where("id = ?", userID).Update("rank", rank).Error; err != nil {
			return nil, persistenceError("update rank", err)
		}
		user.Rank = rank
	}
	return &user, nil
}
