package attempt

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"knowledgecheckr/internal/check"
	"knowledgecheckr/internal/models"
)

var (
	ErrNotFound    = errors.New("knowledge check not found")
	ErrInvalidType = errors.New("unknown attempt type")
	ErrWrongUser   = errors.New("attempt belongs to another user")
)

// AccessError explains why an attempt may not start; the reason is shown to
// the user on the not-allowed page.
type AccessError struct {
	Reason string
}

func (e *AccessError) Error() string {
	return e.Reason
}

// ActivityNotifier receives attempt lifecycle events for the owner's live
// feed. A nil notifier disables the feed.
type ActivityNotifier interface {
	Broadcast(shareKey, event string, data interface{})
}

// CheckResolver resolves a check for the attempt flow; satisfied by
// check.Service.
type CheckResolver interface {
	GetCheckByShareKey(shareKey string) (*models.KnowledgeCheck, error)
}

type Service struct {
	repo     *Repository
	checks   CheckResolver
	store    *Store
	notifier ActivityNotifier
	log      *zap.SugaredLogger
	now      func() time.Time
}

func NewService(repo *Repository, checks CheckResolver, store *Store, notifier ActivityNotifier, log *zap.SugaredLogger) *Service {
	return &Service{
		repo:     repo,
		checks:   checks,
		store:    store,
		notifier: notifier,
		log:      log,
		now:      time.Now,
	}
}

// IsExaminationAllowed evaluates the scheduling window and the disablement
// flag. The returned *AccessError carries a human-readable reason naming the
// violated boundary.
func IsExaminationAllowed(c *models.KnowledgeCheck, now time.Time) error {
	if c.Disabled {
		return &AccessError{Reason: "this knowledge check has been disabled by its owner"}
	}
	if c.OpenDate != nil && now.Before(c.OpenDate.Time) {
		return &AccessError{Reason: fmt.Sprintf("this examination opens on %s", c.OpenDate.Format(time.RFC1123))}
	}
	if c.CloseDate != nil && now.After(c.CloseDate.Time) {
		return &AccessError{Reason: fmt.Sprintf("this examination closed on %s", c.CloseDate.Format(time.RFC1123))}
	}
	return nil
}

// Start opens a new attempt session against the check behind shareKey.
// Examinations are gated on the scheduling window; practice runs may be
// narrowed to a single category.
func (s *Service) Start(userID, shareKey, attemptType string, categoryID *string) (*Session, error) {
	if attemptType != models.AttemptExamination && attemptType != models.AttemptPractice {
		return nil, ErrInvalidType
	}

	c, err := s.checks.GetCheckByShareKey(shareKey)
	if err != nil {
		if errors.Is(err, check.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if userID == "" && !c.Settings.AllowAnonymous {
		return nil, &AccessError{Reason: "this knowledge check does not allow anonymous attempts"}
	}
	if attemptType == models.AttemptExamination {
		if err := IsExaminationAllowed(c, s.now()); err != nil {
			return nil, err
		}
	} else if c.Disabled {
		return nil, &AccessError{Reason: "this knowledge check has been disabled by its owner"}
	}
	if attemptType == models.AttemptPractice && categoryID != nil {
		if err := s.categoryUnlocked(c, userID, *categoryID); err != nil {
			return nil, err
		}
	}

	questions := selectQuestions(c, attemptType, categoryID)
	if len(questions) == 0 {
		return nil, &AccessError{Reason: "this knowledge check has no questions available for this attempt type"}
	}
	orderQuestions(questions, c.Settings)

	session := &Session{
		ID:         uuid.NewString(),
		CheckID:    c.ID,
		ShareKey:   c.ShareKey,
		UserID:     userID,
		Type:       attemptType,
		CategoryID: categoryID,
		Questions:  questions,
		Answers:    make(map[string]Submission),
		StartedAt:  s.now(),
	}
	if attemptType == models.AttemptExamination && c.Settings.ExamTimeFrameSeconds > 0 {
		deadline := session.StartedAt.Add(time.Duration(c.Settings.ExamTimeFrameSeconds) * time.Second)
		session.Deadline = &deadline
	}
	s.store.Put(session)

	s.broadcast(session, "attempt_started", map[string]interface{}{
		"attempt_type": attemptType,
		"user_id":      userID,
	})
	s.log.Infow("attempt started",
		"session_id", session.ID, "check_id", c.ID, "type", attemptType, "user_id", userID)
	return session, nil
}

// categoryUnlocked enforces the prerequisite graph on practice starts: a
// category gated behind another requires a finished practice run of the
// prerequisite by the same user.
func (s *Service) categoryUnlocked(c *models.KnowledgeCheck, userID, categoryID string) error {
	var cat *models.Category
	for i := range c.Categories {
		if c.Categories[i].ID == categoryID {
			cat = &c.Categories[i]
			break
		}
	}
	if cat == nil {
		return &AccessError{Reason: "this category does not exist on this knowledge check"}
	}
	if cat.PrerequisiteID == nil {
		return nil
	}
	done, err := s.repo.HasFinishedPractice(c.ID, userID, *cat.PrerequisiteID)
	if err != nil {
		return err
	}
	if !done {
		name := *cat.PrerequisiteID
		for _, other := range c.Categories {
			if other.ID == *cat.PrerequisiteID {
				name = other.Name
				break
			}
		}
		return &AccessError{Reason: fmt.Sprintf("finish a practice run of the %q category first", name)}
	}
	return nil
}

// selectQuestions filters by accessibility and, for practice runs, by the
// chosen category.
func selectQuestions(c *models.KnowledgeCheck, attemptType string, categoryID *string) []models.Question {
	var out []models.Question
	for i := range c.Questions {
		q := c.Questions[i]
		if !q.VisibleTo(attemptType) {
			continue
		}
		if attemptType == models.AttemptPractice && categoryID != nil && q.CategoryID != *categoryID {
			continue
		}
		// Answers are copied so shuffling never mutates the cached check.
		answers := make([]models.Answer, len(q.Answers))
		copy(answers, q.Answers)
		q.Answers = answers
		out = append(out, q)
	}
	return out
}

func orderQuestions(questions []models.Question, settings models.Settings) {
	if settings.QuestionOrder == models.OrderRandom {
		rand.Shuffle(len(questions), func(i, j int) {
			questions[i], questions[j] = questions[j], questions[i]
		})
	}
	if settings.AnswerOrder == models.OrderRandom {
		for i := range questions {
			answers := questions[i].Answers
			rand.Shuffle(len(answers), func(a, b int) {
				answers[a], answers[b] = answers[b], answers[a]
			})
		}
	}
}

func (s *Service) getOwnedSession(sessionID, userID string) (*Session, error) {
	session, err := s.store.Get(sessionID)
	if err != nil {
		return nil, err
	}
	if session.UserID != userID {
		return nil, ErrWrongUser
	}
	return session, nil
}

// Answer records a submission on the session. When the exam time frame has
// expired the attempt is finished instead and the submission is discarded.
func (s *Service) Answer(sessionID, userID string, sub Submission) (*Session, error) {
	session, err := s.getOwnedSession(sessionID, userID)
	if err != nil {
		return nil, err
	}
	if session.Expired(s.now()) {
		if _, err := s.Finish(sessionID, userID); err != nil {
			return nil, err
		}
		return session, nil
	}
	session.Record(sub)
	return session, nil
}

func (s *Service) Next(sessionID, userID string) (*Session, error) {
	session, err := s.getOwnedSession(sessionID, userID)
	if err != nil {
		return nil, err
	}
	session.Next()
	return session, nil
}

func (s *Service) Previous(sessionID, userID string) (*Session, error) {
	session, err := s.getOwnedSession(sessionID, userID)
	if err != nil {
		return nil, err
	}
	session.Previous()
	return session, nil
}

// Finish closes the attempt, computes the deterministic score and persists
// one result row. Finishing is idempotent: the first completion wins and
// later calls (double submit from the countdown racing the user) return the
// stored result unchanged.
func (s *Service) Finish(sessionID, userID string) (*models.AttemptResult, error) {
	session, err := s.getOwnedSession(sessionID, userID)
	if err != nil {
		return nil, err
	}

	session.mu.Lock()
	if session.Finished {
		result := session.Result
		session.mu.Unlock()
		return result, nil
	}
	session.Finished = true

	score, maxScore := scoreAttempt(session.Questions, session.Answers)
	payload, err := json.Marshal(session.Answers)
	if err != nil {
		payload = []byte("{}")
	}
	finishedAt := s.now()
	result := &models.AttemptResult{
		ID:         uuid.NewString(),
		CheckID:    session.CheckID,
		UserID:     session.UserID,
		Type:       session.Type,
		CategoryID: session.CategoryID,
		StartedAt:  session.StartedAt,
		FinishedAt: &finishedAt,
		Score:      score,
		MaxScore:   maxScore,
		Results:    payload,
	}
	session.Result = result
	session.mu.Unlock()

	if err := s.repo.InsertResult(result); err != nil {
		// Practice results are best effort; examination scores must not be
		// lost silently.
		if session.Type == models.AttemptExamination {
			return nil, err
		}
		s.log.Warnw("practice result not persisted", "session_id", session.ID, "error", err)
	}

	s.broadcast(session, "attempt_finished", map[string]interface{}{
		"attempt_type": session.Type,
		"user_id":      session.UserID,
		"score":        result.Score,
		"max_score":    result.MaxScore,
	})
	s.log.Infow("attempt finished",
		"session_id", session.ID, "check_id", session.CheckID, "score", score, "max_score", maxScore)
	return result, nil
}

// Results lists the caller's stored results for a check and attempt type.
func (s *Service) Results(userID, shareKey, attemptType string) ([]models.AttemptResult, error) {
	c, err := s.checks.GetCheckByShareKey(shareKey)
	if err != nil {
		if errors.Is(err, check.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return s.repo.GetResults(c.ID, userID, attemptType)
}

// CategoryStatus describes one category on the practice selection page.
type CategoryStatus struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Unlocked bool   `json:"unlocked"`
}

// PracticeCategories evaluates the prerequisite graph for the caller: a
// category is unlocked when it has no prerequisite or the prerequisite
// category has a finished practice run by the same user.
func (s *Service) PracticeCategories(userID, shareKey string) ([]CategoryStatus, error) {
	c, err := s.checks.GetCheckByShareKey(shareKey)
	if err != nil {
		if errors.Is(err, check.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	statuses := make([]CategoryStatus, len(c.Categories))
	for i, cat := range c.Categories {
		unlocked := true
		if cat.PrerequisiteID != nil {
			unlocked, err = s.repo.HasFinishedPractice(c.ID, userID, *cat.PrerequisiteID)
			if err != nil {
				return nil, err
			}
		}
		statuses[i] = CategoryStatus{ID: cat.ID, Name: cat.Name, Unlocked: unlocked}
	}
	return statuses, nil
}

func (s *Service) broadcast(session *Session, event string, data interface{}) {
	if s.notifier == nil {
		return
	}
	s.notifier.Broadcast(session.ShareKey, event, data)
}
