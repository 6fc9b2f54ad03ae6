package attempt

import (
	"go.uber.org/zap"
	"gorm.io/gorm"

	"knowledgecheckr/internal/models"
)

type Repository struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

func NewRepository(db *gorm.DB, log *zap.SugaredLogger) *Repository {
	return &Repository{db: db, log: log}
}

func (r *Repository) InsertResult(result *models.AttemptResult) error {
	err := r.db.Create(result).Error
	if err != nil {
		r.log.Errorw("failed to insert attempt result",
			"check_id", result.CheckID, "user_id", result.UserID, "type", result.Type, "error", err)
		return err
	}
	return nil
}

// GetResults returns a user's results for one check and attempt type,
// newest first. Examination and practice results are queried independently.
func (r *Repository) GetResults(checkID, userID, attemptType string) ([]models.AttemptResult, error) {
	var results []models.AttemptResult
	err := r.db.
		Where("check_id = ? AND user_id = ? AND type = ?", checkID, userID, attemptType).
		Order("started_at DESC").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

// GetResultsForCheck returns every result for a check, for the owner view.
func (r *Repository) GetResultsForCheck(checkID string) ([]models.AttemptResult, error) {
	var results []models.AttemptResult
	err := r.db.
		Where("check_id = ?", checkID).
		Order("started_at DESC").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

// HasFinishedPractice reports whether the user completed a practice run for
// the given category of the check. Used to evaluate prerequisite unlocks.
func (r *Repository) HasFinishedPractice(checkID, userID, categoryID string) (bool, error) {
	var count int64
	err := r.db.Model(&models.AttemptResult{}).
		Where("check_id = ? AND user_id = ? AND type = ? AND category_id = ? AND finished_at IS NOT NULL",
			checkID, userID, models.AttemptPractice, categoryID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
