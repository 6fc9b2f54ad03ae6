package attempt

import (
	"errors"
	"sync"
	"time"

	"knowledgecheckr/internal/models"
)

var ErrSessionNotFound = errors.New("attempt session not found")

// Submission is one collected answer, keyed by question id in the session.
// Choice and ordering questions carry answer ids; open questions carry text.
type Submission struct {
	QuestionID string   `json:"question_id"`
	AnswerIDs  []string `json:"answer_ids,omitempty"`
	Text       string   `json:"text,omitempty"`
}

// Session is the state of one in-flight attempt: the served question order,
// the current index and the accumulated submissions. Sessions live in
// process memory for the duration of the attempt; only the final result is
// persisted.
type Session struct {
	mu sync.Mutex

	ID         string
	CheckID    string
	ShareKey   string
	UserID     string
	Type       string
	CategoryID *string

	Questions []models.Question
	Index     int
	Answers   map[string]Submission

	StartedAt time.Time
	Deadline  *time.Time

	Finished bool
	Result   *models.AttemptResult
}

// Next advances to the following question, clamping at the last index.
func (s *Session) Next() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Index < len(s.Questions)-1 {
		s.Index++
	}
	return s.Index
}

// Previous moves back one question, clamping at zero.
func (s *Session) Previous() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Index > 0 {
		s.Index--
	}
	return s.Index
}

// Current returns the question at the session index, or nil for an empty
// question set.
func (s *Session) Current() *models.Question {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Questions) == 0 {
		return nil
	}
	return &s.Questions[s.Index]
}

// Snapshot is a consistent copy of the mutable session state, taken under
// the session lock so responses can be built while navigation or a finish
// runs concurrently.
type Snapshot struct {
	ID       string
	Index    int
	Total    int
	Question *models.Question
	Deadline *time.Time
	Finished bool
	Result   *models.AttemptResult
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		ID:       s.ID,
		Index:    s.Index,
		Total:    len(s.Questions),
		Deadline: s.Deadline,
		Finished: s.Finished,
		Result:   s.Result,
	}
	if len(s.Questions) > 0 {
		q := s.Questions[s.Index]
		snap.Question = &q
	}
	return snap
}

// Record stores a submission, replacing any earlier answer to the same
// question.
func (s *Session) Record(sub Submission) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Answers[sub.QuestionID] = sub
}

// Expired reports whether the exam time frame has elapsed.
func (s *Session) Expired(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Deadline != nil && now.After(*s.Deadline)
}

// Store holds the in-flight sessions for this process.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewStore() *Store {
	return &Store{sessions: make(map[string]*Session)}
}

func (st *Store) Put(s *Session) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.sessions[s.ID] = s
}

func (st *Store) Get(id string) (*Session, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	s, ok := st.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

func (st *Store) Delete(id string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.sessions, id)
}
