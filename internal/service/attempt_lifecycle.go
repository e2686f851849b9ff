package service

import (
	"context"
	"fmt"

	"github.com/looplab/fsm"
	"github.com/stemsi/exstem-proctor/internal/model"
)

const lifecycleSubmit = "submit"

// newLifecycle builds the attempt state machine positioned at the attempt's
// current status. SUBMITTED is terminal: no event leaves it.
func newLifecycle(status model.AttemptStatus) *fsm.FSM {
	return fsm.NewFSM(
		string(status),
		fsm.Events{
			{Name: lifecycleSubmit, Src: []string{string(model.AttemptStatusInProgress)}, Dst: string(model.AttemptStatusSubmitted)},
		},
		fsm.Callbacks{},
	)
}

// advance fires event on the attempt's lifecycle and stores the new status on a.
func advance(ctx context.Context, a *model.ExamAttempt, event string) error {
	lc := newLifecycle(a.Status)
	if !lc.Can(event) {
		return ErrAttemptFinalized
	}
	if err := lc.Event(ctx, event); err != nil {
		return fmt.Errorf("attempt %s: %w", event, err)
	}
	a.Status = model.AttemptStatus(lc.Current())
	return nil
}
