package check

import (
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"knowledgecheckr/internal/models"
)

type Repository struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

func NewRepository(db *gorm.DB, log *zap.SugaredLogger) *Repository {
	return &Repository{db: db, log: log}
}

func (r *Repository) CreateCheck(check *models.KnowledgeCheck) error {
	err := r.db.Create(check).Error
	if err != nil {
		r.log.Errorw("failed to create check", "check_id", check.ID, "error", err)
		return err
	}
	r.log.Infow("created check", "check_id", check.ID, "share_key", check.ShareKey)
	return nil
}

func (r *Repository) GetCheckByID(id string) (*models.KnowledgeCheck, error) {
	var check models.KnowledgeCheck
	err := r.db.
		Preload("Categories").
		Preload("Questions.Answers").
		Preload("Collaborators").
		Preload("Settings").
		First(&check, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &check, nil
}

func (r *Repository) GetCheckByShareKey(shareKey string) (*models.KnowledgeCheck, error) {
	var check models.KnowledgeCheck
	err := r.db.
		Preload("Categories").
		Preload("Questions.Answers").
		Preload("Collaborators").
		Preload("Settings").
		First(&check, "share_key = ?", shareKey).Error
	if err != nil {
		return nil, err
	}
	return &check, nil
}

// GetChecksForUser lists every check the user owns or collaborates on.
func (r *Repository) GetChecksForUser(userID string) ([]models.KnowledgeCheck, error) {
	var checks []models.KnowledgeCheck
	err := r.db.
		Preload("Questions").
		Where("owner_id = ? OR id IN (?)", userID,
			r.db.Model(&models.Collaborator{}).Select("check_id").Where("user_id = ?", userID)).
		Order("updated_at DESC").
		Find(&checks).Error
	if err != nil {
		r.log.Errorw("failed to list checks", "user_id", userID, "error", err)
		return nil, err
	}
	return checks, nil
}

// DiscoverChecks lists anonymously accessible checks, optionally filtered by
// difficulty and a name substring.
func (r *Repository) DiscoverChecks(difficulty, search string) ([]models.KnowledgeCheck, error) {
	q := r.db.
		Preload("Questions").
		Joins("JOIN settings ON settings.check_id = knowledge_checks.id").
		Where("settings.allow_anonymous = ?", true).
		Where("knowledge_checks.disabled = ?", false)
	if difficulty != "" {
		q = q.Where("knowledge_checks.difficulty = ?", difficulty)
	}
	if search != "" {
		q = q.Where("knowledge_checks.name LIKE ?", "%"+search+"%")
	}

	var checks []models.KnowledgeCheck
	if err := q.Order("knowledge_checks.updated_at DESC").Find(&checks).Error; err != nil {
		r.log.Errorw("failed to discover checks", "error", err)
		return nil, err
	}
	return checks, nil
}

// InsertCategory persists a category unless one with the same name already
// exists on the check; in that case the existing row's id is returned and no
// duplicate is created.
func (r *Repository) InsertCategory(cat *models.Category) (string, error) {
	var existing models.Category
	err := r.db.Where("check_id = ? AND name = ?", cat.CheckID, cat.Name).First(&existing).Error
	if err == nil {
		return existing.ID, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", err
	}
	if err := r.db.Create(cat).Error; err != nil {
		r.log.Errorw("failed to insert category", "check_id", cat.CheckID, "name", cat.Name, "error", err)
		return "", err
	}
	return cat.ID, nil
}

// UpdateCheck applies an edited check. Collection-valued children follow a
// delete-all-then-reinsert policy scoped to the check id; the whole sequence
// runs in one transaction so a failure mid-sequence never leaves a partially
// emptied child set.
func (r *Repository) UpdateCheck(check *models.KnowledgeCheck) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"name":        check.Name,
			"description": check.Description,
			"difficulty":  check.Difficulty,
			"open_date":   check.OpenDate,
			"close_date":  check.CloseDate,
			"disabled":    check.Disabled,
		}
		if err := tx.Model(&models.KnowledgeCheck{}).Where("id = ?", check.ID).Updates(updates).Error; err != nil {
			return err
		}
		if err := replaceCategories(tx, check.ID, check.Categories); err != nil {
			return err
		}
		if err := replaceQuestions(tx, check.ID, check.Questions); err != nil {
			return err
		}
		if err := replaceCollaborators(tx, check.ID, check.Collaborators); err != nil {
			return err
		}
		return tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&check.Settings).Error
	})
	if err != nil {
		r.log.Errorw("failed to update check", "check_id", check.ID, "error", err)
		return err
	}
	r.log.Infow("updated check", "check_id", check.ID)
	return nil
}

func replaceCategories(tx *gorm.DB, checkID string, cats []models.Category) error {
	if err := tx.Where("check_id = ?", checkID).Delete(&models.Category{}).Error; err != nil {
		return err
	}
	if len(cats) == 0 {
		return nil
	}
	return tx.Create(&cats).Error
}

func replaceQuestions(tx *gorm.DB, checkID string, questions []models.Question) error {
	if err := tx.Where("question_id IN (?)",
		tx.Model(&models.Question{}).Select("id").Where("check_id = ?", checkID),
	).Delete(&models.Answer{}).Error; err != nil {
		return err
	}
	if err := tx.Where("check_id = ?", checkID).Delete(&models.Question{}).Error; err != nil {
		return err
	}
	if len(questions) == 0 {
		return nil
	}
	return tx.Create(&questions).Error
}

func replaceCollaborators(tx *gorm.DB, checkID string, cols []models.Collaborator) error {
	if err := tx.Where("check_id = ?", checkID).Delete(&models.Collaborator{}).Error; err != nil {
		return err
	}
	if len(cols) == 0 {
		return nil
	}
	return tx.Create(&cols).Error
}

// DeleteCheck removes a check and everything it owns, but only when the
// caller is the owner. The bool reports whether a row was actually removed;
// zero matches is not an error.
func (r *Repository) DeleteCheck(id, ownerID string) (bool, error) {
	var deleted bool
	err := r.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Where("id = ? AND owner_id = ?", id, ownerID).Delete(&models.KnowledgeCheck{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}
		deleted = true
		// Owned children go in the same transaction; foreign-key cascades
		// are not relied on across drivers.
		if err := replaceQuestions(tx, id, nil); err != nil {
			return err
		}
		if err := replaceCategories(tx, id, nil); err != nil {
			return err
		}
		if err := replaceCollaborators(tx, id, nil); err != nil {
			return err
		}
		return tx.Where("check_id = ?", id).Delete(&models.Settings{}).Error
	})
	if err != nil {
		r.log.Errorw("failed to delete check", "check_id", id, "error", err)
		return false, err
	}
	return deleted, nil
}
