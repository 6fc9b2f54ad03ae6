package auth

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

func (r *Repository) GetUserByUsername(username string) (*models.User, error) {
	var user models.User
	result := r.db.Where("username = ?", username).First(&user)
	if result.Error != nil {
		r.log.Warnw("user lookup failed", "username", username, "error", result.Error)
		return nil, result.Error
	}
	return &user, nil
}

func (r *Repository) CreateUser(user *models.User) error {
	return r.db.Create(user).Error
}
