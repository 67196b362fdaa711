// Package store persists the history of contact search runs.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/prospect-cli/internal/config"
	"github.com/sells-group/prospect-cli/internal/model"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = eris.New("store: run not found")

const defaultListLimit = 100

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Title  string          `json:"title,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

func (f RunFilter) limit() int {
	if f.Limit <= 0 {
		return defaultListLimit
	}
	return f.Limit
}

// Store defines the persistence interface for search runs.
type Store interface {
	// CreateRun records a new run in the running state.
	CreateRun(ctx context.Context, criteria model.SearchCriteria) (*model.Run, error)
	// CompleteRun stores the resolved contacts. An empty list marks the run empty.
	CompleteRun(ctx context.Context, runID string, contacts []model.Contact) error
	// FailRun marks the run failed at the given pipeline step.
	FailRun(ctx context.Context, runID, step, message string) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	Migrate(ctx context.Context) error
	Close() error
}

// Open creates the store selected by cfg and applies migrations. The none
// driver yields a nil store.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	var (
		st  Store
		err error
	)
	switch cfg.Driver {
	case config.DriverNone:
		return nil, nil
	case config.DriverPostgres:
		st, err = NewPostgres(ctx, cfg.DatabaseURL, nil)
	case config.DriverSQLite, "":
		st, err = NewSQLite(cfg.DatabaseURL)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}

func completedStatus(contacts []model.Contact) model.RunStatus {
	if len(contacts) == 0 {
		return model.RunStatusEmpty
	}
	return model.RunStatusComplete
}
