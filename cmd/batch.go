package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/prospect-cli/internal/contacts"
	"github.com/sells-group/prospect-cli/internal/model"
	"github.com/sells-group/prospect-cli/internal/prospect"
	"github.com/sells-group/prospect-cli/internal/resilience"
)

var (
	batchInput  string
	batchOutput string
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Resolve contacts for every row of a CSV or XLSX file",
	Long: `Reads rows with columns title, location, industry and limit, runs one
search per row and writes one JSON line per row.

Rows failing with a transient upstream status (408, 429, 5xx) are retried
up to batch.max_attempts times with backoff.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		rows, err := readBatchFile(batchInput)
		if err != nil {
			return err
		}

		env, err := initEnv(ctx, cfg, "batch")
		if err != nil {
			return err
		}
		defer env.Close()

		var w io.Writer = os.Stdout
		if batchOutput != "" {
			f, err := os.Create(batchOutput)
			if err != nil {
				return eris.Wrap(err, "batch: create output file")
			}
			defer f.Close() //nolint:errcheck
			w = f
		}

		results := processBatch(ctx, rows, cfg.Batch.MaxConcurrent, resilience.NewPolicy(cfg.Batch.MaxAttempts), env.Service.Search)
		return writeBatchResults(w, results)
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchInput, "csv", "", "input file (.csv or .xlsx)")
	batchCmd.Flags().StringVarP(&batchOutput, "output", "o", "", "write JSON lines to a file instead of stdout")
	_ = batchCmd.MarkFlagRequired("csv")
	rootCmd.AddCommand(batchCmd)
}

// searchFunc runs one search. prospect.Service.Search satisfies it.
type searchFunc func(ctx context.Context, req contacts.Request) (*prospect.Outcome, error)

// batchResult is the JSON line written for one input row.
type batchResult struct {
	Line     int             `json:"line"`
	Title    string          `json:"title"`
	Location string          `json:"location"`
	RunID    string          `json:"run_id,omitempty"`
	Attempts int             `json:"attempts"`
	Contacts []model.Contact `json:"contacts"`
	Error    *errorBody      `json:"error,omitempty"`
	Status   int             `json:"status,omitempty"`
}

// processBatch searches every row with at most concurrency rows in flight.
// Individual failures never abort the batch. Results keep input order.
func processBatch(ctx context.Context, rows []batchRow, concurrency int, policy resilience.Policy, search searchFunc) []batchResult {
	results := make([]batchResult, len(rows))
	if len(rows) == 0 {
		zap.L().Info("batch: no rows to process")
		return results
	}

	zap.L().Info("processing batch",
		zap.Int("rows", len(rows)),
		zap.Int("concurrency", concurrency),
		zap.Int("max_attempts", policy.MaxAttempts),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(concurrency, 1))

	var succeeded, failed atomic.Int64

	for i, row := range rows {
		g.Go(func() error {
			res := batchResult{
				Line:     row.Line,
				Title:    row.Request.Title,
				Location: row.Request.Location,
				Contacts: []model.Contact{},
			}
			log := zap.L().With(zap.Int("line", row.Line), zap.String("title", row.Request.Title))

			err := row.Err
			if err == nil {
				p := policy
				p.OnRetry = resilience.RetryLogger("batch search", zap.Int("line", row.Line))

				var out *prospect.Outcome
				out, err = resilience.Do(gctx, p, func(ctx context.Context) (*prospect.Outcome, error) {
					res.Attempts++
					o, err := search(ctx, row.Request)
					if o != nil && o.RunID != "" {
						res.RunID = o.RunID
					}
					return o, err
				})
				if err == nil {
					res.Contacts = out.Result.Contacts
				}
			}

			if err != nil {
				failed.Add(1)
				se := contacts.AsStepError(err)
				res.Error = &errorBody{Step: se.Step, Error: se.Message, Details: se.Details}
				res.Status = se.Status
				log.Warn("batch: row failed", zap.String("step", string(se.Step)), zap.Int("status", se.Status))
			} else {
				succeeded.Add(1)
				log.Info("batch: row complete", zap.Int("contacts", len(res.Contacts)))
			}

			results[i] = res
			return nil // don't abort batch on individual failure
		})
	}

	_ = g.Wait()

	zap.L().Info("batch complete",
		zap.Int("total", len(rows)),
		zap.Int64("succeeded", succeeded.Load()),
		zap.Int64("failed", failed.Load()),
	)
	return results
}

func writeBatchResults(w io.Writer, results []batchResult) error {
	enc := json.NewEncoder(w)
	for _, r := range results {
		if err := enc.Encode(r); err != nil {
			return eris.Wrap(err, "batch: write result")
		}
	}
	return nil
}
