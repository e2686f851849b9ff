// Package servicetest provides in-memory stores for service and handler tests.
package servicetest

import (
	"bytes"
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/repository"
	"github.com/stemsi/exstem-proctor/internal/service"
)

// Attempts is an in-memory AttemptStore. Like the Postgres partial unique
// index, it refuses a second IN_PROGRESS attempt for the same (user, exam).
type Attempts struct {
	mu   sync.Mutex
	rows []*model.ExamAttempt
	// AfterFindActive, when set, runs after every FindActive lookup outside
	// the lock. Tests use it to interleave a concurrent writer.
	AfterFindActive func()
	exams           *Exams
}

// NewAttempts creates an empty store. exams supplies durations for
// ListOverdue and may be nil.
func NewAttempts(exams *Exams) *Attempts {
	return &Attempts{exams: exams}
}

func (s *Attempts) GetByID(_ context.Context, id uuid.UUID) (*model.ExamAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.rows {
		if a.ID == id {
			return clone(a), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *Attempts) FindActive(_ context.Context, userID int, examID uuid.UUID) (*model.ExamAttempt, error) {
	if s.AfterFindActive != nil {
		defer s.AfterFindActive()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var found *model.ExamAttempt
	for _, a := range s.rows {
		if a.UserID == userID && a.ExamID == examID && a.Status == model.AttemptStatusInProgress {
			if found == nil || a.CreatedAt.After(found.CreatedAt) {
				found = a
			}
		}
	}
	if found == nil {
		return nil, repository.ErrNotFound
	}
	return clone(found), nil
}

func (s *Attempts) Create(_ context.Context, a *model.ExamAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range s.rows {
		if row.UserID == a.UserID && row.ExamID == a.ExamID && row.Status == model.AttemptStatusInProgress {
			return repository.ErrConflict
		}
	}
	a.ID = uuid.New()
	a.CreatedAt = time.Now()
	s.rows = append(s.rows, clone(a))
	return nil
}

func (s *Attempts) Finalize(_ context.Context, a *model.ExamAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, row := range s.rows {
		if row.ID == a.ID {
			updated := clone(row)
			updated.Answers = a.Answers
			updated.EndTime = a.EndTime
			updated.Score = a.Score
			updated.Status = a.Status
			s.rows[i] = updated
			return nil
		}
	}
	return repository.ErrNotFound
}

func (s *Attempts) ListOverdue(ctx context.Context, examID *uuid.UUID, now time.Time, grace time.Duration, after *model.OverdueCursor, limit int) ([]model.OverdueAttempt, error) {
	s.mu.Lock()
	live := make([]model.ExamAttempt, 0, len(s.rows))
	for _, a := range s.rows {
		if a.Status == model.AttemptStatusInProgress && (examID == nil || a.ExamID == *examID) {
			live = append(live, *a)
		}
	}
	s.mu.Unlock()

	var out []model.OverdueAttempt
	for _, a := range live {
		if s.exams == nil {
			break
		}
		exam, err := s.exams.GetByID(ctx, a.ExamID)
		if err != nil {
			continue
		}
		deadline := a.Deadline(exam.DurationMinutes, grace)
		if deadline.Before(now) {
			out = append(out, model.OverdueAttempt{
				AttemptID: a.ID,
				ExamID:    a.ExamID,
				UserID:    a.UserID,
				StartTime: a.StartTime,
				Deadline:  deadline,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return overdueLess(out[i].StartTime, out[i].AttemptID, out[j].StartTime, out[j].AttemptID)
	})
	if after != nil {
		kept := out[:0]
		for _, o := range out {
			if overdueLess(after.StartTime, after.AttemptID, o.StartTime, o.AttemptID) {
				kept = append(kept, o)
			}
		}
		out = kept
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// overdueLess orders like the Postgres row comparison (start_time, id).
func overdueLess(at time.Time, aid uuid.UUID, bt time.Time, bid uuid.UUID) bool {
	if !at.Equal(bt) {
		return at.Before(bt)
	}
	return bytes.Compare(aid[:], bid[:]) < 0
}

// Put stores a prepared attempt as is.
func (s *Attempts) Put(a *model.ExamAttempt) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	s.rows = append(s.rows, clone(a))
}

// LiveCount returns the number of IN_PROGRESS attempts for the pair.
func (s *Attempts) LiveCount(userID int, examID uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, a := range s.rows {
		if a.UserID == userID && a.ExamID == examID && a.Status == model.AttemptStatusInProgress {
			n++
		}
	}
	return n
}

func clone(a *model.ExamAttempt) *model.ExamAttempt {
	c := *a
	c.Answers = append([]model.Answer(nil), a.Answers...)
	if a.EndTime != nil {
		t := *a.EndTime
		c.EndTime = &t
	}
	return &c
}

// Events is an in-memory EventStore.
type Events struct {
	mu   sync.Mutex
	rows []model.ProctorEvent
}

// NewEvents creates an empty store.
func NewEvents() *Events {
	return &Events{}
}

func (s *Events) Append(_ context.Context, e *model.ProctorEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.ID = uuid.New()
	s.rows = append(s.rows, *e)
	return nil
}

func (s *Events) CountByType(_ context.Context, attemptID uuid.UUID) (map[model.EventType]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[model.EventType]int)
	for _, e := range s.rows {
		if e.AttemptID == attemptID {
			counts[e.EventType]++
		}
	}
	return counts, nil
}

func (s *Events) ListRecent(_ context.Context, attemptID uuid.UUID, limit int) ([]model.ProctorEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.ProctorEvent
	// Walk backwards so equal timestamps keep newest-inserted first.
	for i := len(s.rows) - 1; i >= 0; i-- {
		if s.rows[i].AttemptID == attemptID {
			out = append(out, s.rows[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Len returns the number of stored events.
func (s *Events) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

// Exams is an in-memory ExamStore.
type Exams struct {
	mu   sync.Mutex
	rows map[uuid.UUID]model.Exam
}

// NewExams creates a store holding exams.
func NewExams(exams ...model.Exam) *Exams {
	s := &Exams{rows: make(map[uuid.UUID]model.Exam)}
	for _, e := range exams {
		s.rows[e.ID] = e
	}
	return s
}

func (s *Exams) GetByID(_ context.Context, id uuid.UUID) (*model.Exam, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &e, nil
}

// Questions is an in-memory QuestionStore.
type Questions struct {
	rows []model.Question
}

// NewQuestions creates a store holding questions.
func NewQuestions(questions ...model.Question) *Questions {
	return &Questions{rows: questions}
}

func (s *Questions) ListByExam(_ context.Context, examID uuid.UUID) ([]model.Question, error) {
	var out []model.Question
	for _, q := range s.rows {
		if q.ExamID == examID {
			out = append(out, q)
		}
	}
	return out, nil
}

// Users is an in-memory UserStore.
type Users struct {
	rows map[int]model.User
}

// NewUsers creates a store holding users.
func NewUsers(users ...model.User) *Users {
	s := &Users{rows: make(map[int]model.User)}
	for _, u := range users {
		s.rows[u.ID] = u
	}
	return s
}

func (s *Users) GetByID(_ context.Context, id int) (*model.User, error) {
	u, ok := s.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

// Monitor records published monitor messages.
type Monitor struct {
	mu       sync.Mutex
	messages []service.MonitorMessage
}

func (m *Monitor) Publish(_ context.Context, msg service.MonitorMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
	return nil
}

// Messages returns a copy of everything published so far.
func (m *Monitor) Messages() []service.MonitorMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]service.MonitorMessage(nil), m.messages...)
}

// LiveView joins Attempts and Events into a MonitorStore.
type LiveView struct {
	Attempts *Attempts
	Events   *Events
}

func (v LiveView) ListLiveAttempts(_ context.Context, examID uuid.UUID) ([]model.LiveAttempt, error) {
	v.Attempts.mu.Lock()
	defer v.Attempts.mu.Unlock()
	var out []model.LiveAttempt
	for _, a := range v.Attempts.rows {
		if a.ExamID == examID && a.Status == model.AttemptStatusInProgress {
			out = append(out, model.LiveAttempt{AttemptID: a.ID, UserID: a.UserID, StartTime: a.StartTime})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return overdueLess(out[i].StartTime, out[i].AttemptID, out[j].StartTime, out[j].AttemptID)
	})
	return out, nil
}

func (v LiveView) CountEventsByAttempt(ctx context.Context, examID uuid.UUID) (map[uuid.UUID]int64, error) {
	live, _ := v.ListLiveAttempts(ctx, examID)
	ids := make(map[uuid.UUID]bool, len(live))
	for _, a := range live {
		ids[a.AttemptID] = true
	}

	v.Events.mu.Lock()
	defer v.Events.mu.Unlock()
	counts := make(map[uuid.UUID]int64)
	for _, e := range v.Events.rows {
		if ids[e.AttemptID] {
			counts[e.AttemptID]++
		}
	}
	return counts, nil
}

var (
	_ service.MonitorStore     = LiveView{}
	_ service.AttemptStore     = (*Attempts)(nil)
	_ service.EventStore       = (*Events)(nil)
	_ service.ExamStore        = (*Exams)(nil)
	_ service.QuestionStore    = (*Questions)(nil)
	_ service.UserStore        = (*Users)(nil)
	_ service.MonitorPublisher = (*Monitor)(nil)
)
