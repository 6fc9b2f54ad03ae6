package check

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"knowledgecheckr/internal/models"
	"knowledgecheckr/internal/schema"
)

var (
	ErrNotFound  = errors.New("knowledge check not found")
	ErrForbidden = errors.New("not allowed to edit this check")
)

// CheckCache is the share-key lookup cache; a nil cache disables caching.
type CheckCache interface {
	GetCheck(shareKey string) (*models.KnowledgeCheck, error)
	SetCheck(check *models.KnowledgeCheck) error
	InvalidateCheck(shareKey string) error
}

type Service struct {
	repo  *Repository
	cache CheckCache
	log   *zap.SugaredLogger
}

func NewService(repo *Repository, cache CheckCache, log *zap.SugaredLogger) *Service {
	return &Service{repo: repo, cache: cache, log: log}
}

// HasCollaborativePermissions reports whether userID may edit the check:
// true iff userID is the owner or listed as a collaborator. An empty userID
// is never permitted; the predicate does not error.
func HasCollaborativePermissions(check *models.KnowledgeCheck, userID string) bool {
	if check == nil || userID == "" {
		return false
	}
	if check.OwnerID == userID {
		return true
	}
	for _, col := range check.Collaborators {
		if col.UserID == userID {
			return true
		}
	}
	return false
}

// SaveCheck persists an authoring draft. New checks are created under the
// caller's ownership; existing checks require collaborative permissions, and
// owner and share key are preserved from the stored row regardless of what
// the draft claims.
func (s *Service) SaveCheck(userID string, check *models.KnowledgeCheck) error {
	if userID == "" {
		return ErrForbidden
	}

	if err := resolveQuestionCategories(check); err != nil {
		return err
	}

	existing, err := s.repo.GetCheckByID(check.ID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		check.OwnerID = userID
		if err := s.repo.CreateCheck(check); err != nil {
			return err
		}
		s.cacheSet(check)
		return nil
	}

	if !HasCollaborativePermissions(existing, userID) {
		return ErrForbidden
	}
	check.OwnerID = existing.OwnerID
	check.ShareKey = existing.ShareKey
	if err := s.repo.UpdateCheck(check); err != nil {
		return err
	}
	s.cacheInvalidate(existing.ShareKey)
	return nil
}

// resolveQuestionCategories maps each question's category name to the id of
// the matching category on the same draft. A name that resolves to nothing
// fails the save.
func resolveQuestionCategories(check *models.KnowledgeCheck) error {
	for i := range check.Questions {
		q := &check.Questions[i]
		if q.Category == "" && q.CategoryID != "" {
			continue
		}
		cat := check.CategoryByName(q.Category)
		if cat == nil {
			return &schema.ValidationError{Errors: []schema.FieldError{{
				Field:   fmt.Sprintf("questions[%d].category", i),
				Message: fmt.Sprintf("category %q does not exist on this check", q.Category),
			}}}
		}
		q.CategoryID = cat.ID
	}
	return nil
}

// GetCheckByShareKey resolves a check for the attempt flow, consulting the
// cache before the database.
func (s *Service) GetCheckByShareKey(shareKey string) (*models.KnowledgeCheck, error) {
	if s.cache != nil {
		if check, err := s.cache.GetCheck(shareKey); err == nil {
			return check, nil
		}
	}

	check, err := s.repo.GetCheckByShareKey(shareKey)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	populateCategoryNames(check)
	s.cacheSet(check)
	return check, nil
}

// GetCheckForEditing loads a check by id for the authoring UI, rejecting
// callers without collaborative permissions.
func (s *Service) GetCheckForEditing(userID, checkID string) (*models.KnowledgeCheck, error) {
	check, err := s.repo.GetCheckByID(checkID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !HasCollaborativePermissions(check, userID) {
		return nil, ErrForbidden
	}
	populateCategoryNames(check)
	return check, nil
}

// AddCategory appends a single category to an existing check. Inserting a
// name that already exists on the check is a no-op returning the existing id.
func (s *Service) AddCategory(userID, checkID, name string, prerequisiteID *string) (string, error) {
	check, err := s.repo.GetCheckByID(checkID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrNotFound
		}
		return "", err
	}
	if !HasCollaborativePermissions(check, userID) {
		return "", ErrForbidden
	}

	id, err := s.repo.InsertCategory(&models.Category{
		ID:             uuid.NewString(),
		CheckID:        checkID,
		Name:           name,
		PrerequisiteID: prerequisiteID,
	})
	if err != nil {
		return "", err
	}
	s.cacheInvalidate(check.ShareKey)
	return id, nil
}

func (s *Service) MyChecks(userID string) ([]models.CheckSummaryDTO, error) {
	checks, err := s.repo.GetChecksForUser(userID)
	if err != nil {
		return nil, err
	}
	return summarize(checks), nil
}

func (s *Service) Discover(difficulty, search string) ([]models.CheckSummaryDTO, error) {
	checks, err := s.repo.DiscoverChecks(difficulty, search)
	if err != nil {
		return nil, err
	}
	return summarize(checks), nil
}

// DeleteCheck removes the check when the caller owns it. A false return with
// nil error means no row matched (unknown id or not the owner).
func (s *Service) DeleteCheck(userID, checkID string) (bool, error) {
	if userID == "" {
		return false, nil
	}

	check, err := s.repo.GetCheckByID(checkID)
	shareKey := ""
	if err == nil {
		shareKey = check.ShareKey
	}

	deleted, err := s.repo.DeleteCheck(checkID, userID)
	if err != nil {
		return false, err
	}
	if deleted && shareKey != "" {
		s.cacheInvalidate(shareKey)
	}
	return deleted, nil
}

func summarize(checks []models.KnowledgeCheck) []models.CheckSummaryDTO {
	out := make([]models.CheckSummaryDTO, len(checks))
	for i, c := range checks {
		out[i] = c.ToSummaryDTO()
	}
	return out
}

func populateCategoryNames(check *models.KnowledgeCheck) {
	byID := make(map[string]string, len(check.Categories))
	for _, cat := range check.Categories {
		byID[cat.ID] = cat.Name
	}
	for i := range check.Questions {
		q := &check.Questions[i]
		if q.Category == "" {
			q.Category = byID[q.CategoryID]
		}
	}
}

func (s *Service) cacheSet(check *models.KnowledgeCheck) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetCheck(check); err != nil {
		s.log.Warnw("failed to cache check", "share_key", check.ShareKey, "error", err)
	}
}

func (s *Service) cacheInvalidate(shareKey string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateCheck(shareKey); err != nil {
		s.log.Warnw("failed to invalidate cached check", "share_key", shareKey, "error", err)
	}
}
