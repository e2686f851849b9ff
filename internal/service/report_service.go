package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/repository"
	"github.com/stemsi/exstem-proctor/internal/risk"
	"golang.org/x/sync/errgroup"
)

// TimelineLimit bounds the number of events returned in a report.
// Older events need a paginated interface.
const TimelineLimit = 100

// AttemptDetails is the attempt summary section of a report.
type AttemptDetails struct {
	StartTime  time.Time           `json:"startTime"`
	EndTime    *time.Time          `json:"endTime"`
	MarksScore int                 `json:"marksScore"`
	Status     model.AttemptStatus `json:"status"`
}

// Report is the reviewer view of one attempt.
type Report struct {
	Student           *model.User          `json:"student"`
	Exam              *model.Exam          `json:"exam"`
	AttemptDetails    AttemptDetails       `json:"attemptDetails"`
	ProctoringSummary risk.Profile         `json:"proctoringSummary"`
	Timeline          []model.ProctorEvent `json:"timeline"`
}

// ReportService assembles attempt reports for exam owners.
type ReportService struct {
	attempts AttemptStore
	exams    ExamStore
	users    UserStore
	events   EventStore
	risk     *RiskService
}

// NewReportService creates a new ReportService.
func NewReportService(attempts AttemptStore, exams ExamStore, users UserStore, events EventStore, riskSvc *RiskService) *ReportService {
	return &ReportService{
		attempts: attempts,
		exams:    exams,
		users:    users,
		events:   events,
		risk:     riskSvc,
	}
}

// BuildReport returns the report for attemptID. The requester must be the
// creator of the attempt's exam; being an admin is not enough.
func (s *ReportService) BuildReport(ctx context.Context, attemptID uuid.UUID, requesterID int) (*Report, error) {
	attempt, err := s.attempts.GetByID(ctx, attemptID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("get attempt: %w", err)
	}

	exam, err := s.exams.GetByID(ctx, attempt.ExamID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("get exam: %w", err)
	}
	if exam.CreatedBy != requesterID {
		return nil, ErrNotExamOwner
	}

	var (
		student  *model.User
		profile  risk.Profile
		timeline []model.ProctorEvent
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		u, err := s.users.GetByID(gctx, attempt.UserID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("get student: %w", err)
		}
		student = u
		return nil
	})
	g.Go(func() error {
		p, err := s.risk.ComputeProfile(gctx, attempt.ID)
		if err != nil {
			return err
		}
		profile = p
		return nil
	})
	g.Go(func() error {
		recent, err := s.events.ListRecent(gctx, attempt.ID, TimelineLimit)
		if err != nil {
			return fmt.Errorf("list recent events: %w", err)
		}
		// Fetched newest first; reviewers read it oldest first.
		slices.Reverse(recent)
		timeline = recent
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if timeline == nil {
		timeline = []model.ProctorEvent{}
	}

	return &Report{
		Student: student,
		Exam:    exam,
		AttemptDetails: AttemptDetails{
			StartTime:  attempt.StartTime,
			EndTime:    attempt.EndTime,
			MarksScore: attempt.Score,
			Status:     attempt.Status,
		},
		ProctoringSummary: profile,
		Timeline:          timeline,
	}, nil
}
