package service_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/service"
	"github.com/stemsi/exstem-proctor/internal/service/servicetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type proctorFixture struct {
	examID   uuid.UUID
	attempt  *model.ExamAttempt
	attempts *servicetest.Attempts
	events   *servicetest.Events
	monitor  *servicetest.Monitor
	svc      *service.ProctorService
}

func newProctorFixture(t *testing.T, maxEvidence int) *proctorFixture {
	t.Helper()

	f := &proctorFixture{
		examID:   uuid.New(),
		attempts: servicetest.NewAttempts(nil),
		events:   servicetest.NewEvents(),
		monitor:  &servicetest.Monitor{},
	}
	f.attempt = &model.ExamAttempt{
		ExamID:    f.examID,
		UserID:    studentID,
		StartTime: time.Now().Add(-time.Minute),
		Status:    model.AttemptStatusInProgress,
	}
	f.attempts.Put(f.attempt)
	f.svc = service.NewProctorService(f.attempts, f.events, f.monitor, maxEvidence, zerolog.Nop())
	return f
}

func metadataOfSize(n int) map[string]any {
	m := make(map[string]any, n)
	for i := range n {
		m[fmt.Sprintf("k%d", i)] = i
	}
	return m
}

func TestIngest_StoresEventBoundToLiveAttempt(t *testing.T) {
	f := newProctorFixture(t, 0)

	ev, err := f.svc.Ingest(context.Background(), studentID, model.LogProctorEventRequest{
		ExamID:        f.examID,
		EventType:     model.EventNoFace,
		Metadata:      map[string]any{"streak": 3},
		EvidenceImage: "data:image/jpeg;base64,AAAA",
	})
	require.NoError(t, err)

	assert.Equal(t, f.attempt.ID, ev.AttemptID)
	assert.Equal(t, studentID, ev.UserID)
	assert.Equal(t, model.EventNoFace, ev.EventType)
	assert.False(t, ev.Timestamp.IsZero())
	assert.Equal(t, 1, f.events.Len())

	msgs := f.monitor.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, service.MonitorProctorEvent, msgs[0].Type)
	assert.Equal(t, model.EventNoFace, msgs[0].EventType)
}

func TestIngest_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		userID  int
		req     func(examID uuid.UUID) model.LogProctorEventRequest
		wantErr error
	}{
		{
			name:   "unknown event type",
			userID: studentID,
			req: func(examID uuid.UUID) model.LogProctorEventRequest {
				return model.LogProctorEventRequest{ExamID: examID, EventType: "HACK"}
			},
			wantErr: service.ErrInvalidEventType,
		},
		{
			name:   "soft look-away is not a server event",
			userID: studentID,
			req: func(examID uuid.UUID) model.LogProctorEventRequest {
				return model.LogProctorEventRequest{ExamID: examID, EventType: "LOOK_AWAY"}
			},
			wantErr: service.ErrInvalidEventType,
		},
		{
			name:   "invalid type checked before session",
			userID: 777,
			req: func(examID uuid.UUID) model.LogProctorEventRequest {
				return model.LogProctorEventRequest{ExamID: examID, EventType: "HACK"}
			},
			wantErr: service.ErrInvalidEventType,
		},
		{
			name:   "user without live attempt",
			userID: 777,
			req: func(examID uuid.UUID) model.LogProctorEventRequest {
				return model.LogProctorEventRequest{ExamID: examID, EventType: model.EventTabSwitch}
			},
			wantErr: service.ErrNoActiveSession,
		},
		{
			name:   "other exam",
			userID: studentID,
			req: func(uuid.UUID) model.LogProctorEventRequest {
				return model.LogProctorEventRequest{ExamID: uuid.New(), EventType: model.EventTabSwitch}
			},
			wantErr: service.ErrNoActiveSession,
		},
		{
			name:   "metadata over cap",
			userID: studentID,
			req: func(examID uuid.UUID) model.LogProctorEventRequest {
				return model.LogProctorEventRequest{ExamID: examID, EventType: model.EventMicNoise, Metadata: metadataOfSize(model.MaxMetadataKeys + 1)}
			},
			wantErr: service.ErrMetadataTooLarge,
		},
		{
			name:   "evidence over cap",
			userID: studentID,
			req: func(examID uuid.UUID) model.LogProctorEventRequest {
				return model.LogProctorEventRequest{ExamID: examID, EventType: model.EventMultipleFaces, EvidenceImage: strings.Repeat("A", 65)}
			},
			wantErr: service.ErrEvidenceTooLarge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newProctorFixture(t, 64)

			_, err := f.svc.Ingest(context.Background(), tt.userID, tt.req(f.examID))
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Zero(t, f.events.Len(), "rejected event must not be persisted")
			assert.Empty(t, f.monitor.Messages())
		})
	}
}

func TestIngest_MetadataAtCapAccepted(t *testing.T) {
	f := newProctorFixture(t, 0)

	_, err := f.svc.Ingest(context.Background(), studentID, model.LogProctorEventRequest{
		ExamID:    f.examID,
		EventType: model.EventMicNoise,
		Metadata:  metadataOfSize(model.MaxMetadataKeys),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, f.events.Len())
}

func TestIngest_SubmittedAttemptHasNoSession(t *testing.T) {
	f := newProctorFixture(t, 0)
	ctx := context.Background()

	done := *f.attempt
	done.Status = model.AttemptStatusSubmitted
	require.NoError(t, f.attempts.Finalize(ctx, &done))

	_, err := f.svc.Ingest(ctx, studentID, model.LogProctorEventRequest{ExamID: f.examID, EventType: model.EventTabSwitch})
	assert.ErrorIs(t, err, service.ErrNoActiveSession)
}

func TestAttemptIDFor(t *testing.T) {
	f := newProctorFixture(t, 0)
	ctx := context.Background()

	id, err := f.svc.AttemptIDFor(ctx, studentID, f.examID)
	require.NoError(t, err)
	assert.Equal(t, f.attempt.ID, id)

	_, err = f.svc.AttemptIDFor(ctx, 777, f.examID)
	assert.ErrorIs(t, err, service.ErrNoActiveSession)
}
