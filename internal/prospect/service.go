// Package prospect runs contact searches and records them in run history.
package prospect

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/prospect-cli/internal/contacts"
	"github.com/sells-group/prospect-cli/internal/model"
	"github.com/sells-group/prospect-cli/internal/store"
)

// ErrHistoryDisabled is returned by history reads when no store is configured.
var ErrHistoryDisabled = eris.New("prospect: run history is disabled")

// Outcome is the result of one recorded search. RunID is empty when the run
// could not be recorded.
type Outcome struct {
	RunID  string
	Result *model.PipelineResult
}

// Service wraps the pipeline with run recording.
type Service struct {
	pipeline *contacts.Pipeline
	store    store.Store
}

// NewService creates a Service. A nil store disables run history.
func NewService(p *contacts.Pipeline, st store.Store) *Service {
	return &Service{pipeline: p, store: st}
}

// HistoryEnabled reports whether runs are being recorded.
func (s *Service) HistoryEnabled() bool {
	return s.store != nil
}

// Search validates req, resolves it and records the run. Validation and
// configuration failures are returned before anything is recorded. Storage
// failures are logged and never change the search outcome.
func (s *Service) Search(ctx context.Context, req contacts.Request) (*Outcome, error) {
	criteria, err := contacts.ParseCriteria(req)
	if err != nil {
		return nil, err
	}
	if !s.pipeline.Configured() {
		_, err := s.pipeline.Resolve(ctx, criteria)
		return nil, err
	}

	// Recording must finish even if the caller goes away mid-search.
	recCtx := context.WithoutCancel(ctx)
	runID := s.start(recCtx, criteria)

	result, err := s.pipeline.Resolve(ctx, criteria)
	if err != nil {
		se := contacts.AsStepError(err)
		s.fail(recCtx, runID, se)
		return &Outcome{RunID: runID}, err
	}

	s.complete(recCtx, runID, result.Contacts)
	return &Outcome{RunID: runID, Result: result}, nil
}

// Run returns one recorded run.
func (s *Service) Run(ctx context.Context, id string) (*model.Run, error) {
	if s.store == nil {
		return nil, ErrHistoryDisabled
	}
	return s.store.GetRun(ctx, id)
}

// Runs lists recorded runs, newest first.
func (s *Service) Runs(ctx context.Context, filter store.RunFilter) ([]model.Run, error) {
	if s.store == nil {
		return nil, ErrHistoryDisabled
	}
	return s.store.ListRuns(ctx, filter)
}

func (s *Service) start(ctx context.Context, criteria model.SearchCriteria) string {
	if s.store == nil {
		return ""
	}
	run, err := s.store.CreateRun(ctx, criteria)
	if err != nil {
		zap.L().Warn("prospect: create run failed", zap.Error(err))
		return ""
	}
	return run.ID
}

func (s *Service) complete(ctx context.Context, runID string, found []model.Contact) {
	if s.store == nil || runID == "" {
		return
	}
	if err := s.store.CompleteRun(ctx, runID, found); err != nil {
		zap.L().Warn("prospect: complete run failed", zap.String("run_id", runID), zap.Error(err))
	}
}

func (s *Service) fail(ctx context.Context, runID string, se *contacts.StepError) {
	if s.store == nil || runID == "" {
		return
	}
	if err := s.store.FailRun(ctx, runID, string(se.Step), se.Message); err != nil {
		zap.L().Warn("prospect: fail run failed", zap.String("run_id", runID), zap.Error(err))
	}
}
