package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/prospect-cli/internal/contacts"
	"github.com/sells-group/prospect-cli/internal/model"
	"github.com/sells-group/prospect-cli/internal/prospect"
	"github.com/sells-group/prospect-cli/internal/resilience"
)

func fastPolicy(attempts int) resilience.Policy {
	p := resilience.NewPolicy(attempts)
	p.InitialBackoff = time.Millisecond
	p.MaxBackoff = 2 * time.Millisecond
	p.JitterFraction = 0
	return p
}

func TestParseBatchRecords(t *testing.T) {
	records := [][]string{
		{"Location", "Title", "Industry", "Limit"},
		{"Austin", "CTO", "fintech", "3"},
		{"", "", "", ""},
		{"Denver", "VP Sales", "", ""},
		{"Boston", "CEO", "", "many"},
	}

	rows, err := parseBatchRecords(records)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, 2, rows[0].Line)
	assert.Equal(t, "CTO", rows[0].Request.Title)
	assert.Equal(t, "Austin", rows[0].Request.Location)
	assert.Equal(t, "fintech", rows[0].Request.Industry)
	require.NotNil(t, rows[0].Request.Limit)
	assert.Equal(t, 3.0, *rows[0].Request.Limit)
	assert.NoError(t, rows[0].Err)

	assert.Equal(t, 4, rows[1].Line)
	assert.Nil(t, rows[1].Request.Limit)

	assert.Equal(t, 5, rows[2].Line)
	require.Error(t, rows[2].Err)
	assert.Equal(t, contacts.StepValidate, contacts.AsStepError(rows[2].Err).Step)
}

func TestParseBatchRecords_Errors(t *testing.T) {
	_, err := parseBatchRecords(nil)
	assert.ErrorContains(t, err, "input is empty")

	_, err = parseBatchRecords([][]string{{"title", "industry"}})
	assert.ErrorContains(t, err, `missing "location" column`)
}

func TestReadBatchFile_CSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rows.csv")
	require.NoError(t, os.WriteFile(path, []byte("title,location\nCTO, Austin\n\"Head, Ops\",NYC\n"), 0o644))

	rows, err := readBatchFile(path)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Austin", rows[0].Request.Location)
	assert.Equal(t, "Head, Ops", rows[1].Request.Title)
}

func TestReadBatchFile_XLSX(t *testing.T) {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Sheet1")
	require.NoError(t, err)
	for _, rec := range [][]string{{"title", "location", "limit"}, {"CTO", "Austin", "2"}} {
		row := sheet.AddRow()
		for _, v := range rec {
			row.AddCell().SetString(v)
		}
	}
	path := filepath.Join(t.TempDir(), "rows.xlsx")
	require.NoError(t, f.Save(path))

	rows, err := readBatchFile(path)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "CTO", rows[0].Request.Title)
	require.NotNil(t, rows[0].Request.Limit)
	assert.Equal(t, 2.0, *rows[0].Request.Limit)
}

func TestReadBatchFile_Missing(t *testing.T) {
	_, err := readBatchFile(filepath.Join(t.TempDir(), "nope.csv"))
	assert.ErrorContains(t, err, "batch: open input")
}

func request(title, location string) contacts.Request {
	return contacts.Request{Title: title, Location: location}
}

func TestProcessBatch_RetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	search := func(_ context.Context, _ contacts.Request) (*prospect.Outcome, error) {
		if calls.Add(1) < 3 {
			return &prospect.Outcome{RunID: "run-x"}, &contacts.StepError{Step: contacts.StepSearch, Status: 429, Message: "slow down"}
		}
		return &prospect.Outcome{RunID: "run-y", Result: &model.PipelineResult{Contacts: []model.Contact{{Name: "Ann"}}}}, nil
	}

	results := processBatch(context.Background(), []batchRow{{Line: 2, Request: request("CTO", "Austin")}}, 2, fastPolicy(3), search)

	require.Len(t, results, 1)
	assert.Equal(t, 3, results[0].Attempts)
	assert.Equal(t, "run-y", results[0].RunID)
	assert.Nil(t, results[0].Error)
	assert.Len(t, results[0].Contacts, 1)
}

func TestProcessBatch_DoesNotRetryPermanentFailures(t *testing.T) {
	var calls atomic.Int32
	search := func(_ context.Context, _ contacts.Request) (*prospect.Outcome, error) {
		calls.Add(1)
		return &prospect.Outcome{}, &contacts.StepError{Step: contacts.StepSearch, Status: 401, Message: "Unauthorized"}
	}

	results := processBatch(context.Background(), []batchRow{{Line: 2, Request: request("CTO", "Austin")}}, 1, fastPolicy(3), search)

	assert.Equal(t, int32(1), calls.Load())
	require.NotNil(t, results[0].Error)
	assert.Equal(t, contacts.StepSearch, results[0].Error.Step)
	assert.Equal(t, 401, results[0].Status)
	assert.Equal(t, []model.Contact{}, results[0].Contacts)
}

func TestProcessBatch_MalformedRowSkipsSearch(t *testing.T) {
	var calls atomic.Int32
	search := func(_ context.Context, _ contacts.Request) (*prospect.Outcome, error) {
		calls.Add(1)
		return nil, nil
	}
	row := batchRow{Line: 7, Request: request("CTO", "Austin"), Err: contacts.ValidationError("limit must be a number", nil)}

	results := processBatch(context.Background(), []batchRow{row}, 1, fastPolicy(3), search)

	assert.Zero(t, calls.Load())
	assert.Equal(t, 0, results[0].Attempts)
	assert.Equal(t, 400, results[0].Status)
	assert.Equal(t, "limit must be a number", results[0].Error.Error)
}

func TestProcessBatch_KeepsInputOrder(t *testing.T) {
	search := func(_ context.Context, req contacts.Request) (*prospect.Outcome, error) {
		if req.Title == "slow" {
			time.Sleep(20 * time.Millisecond)
		}
		return &prospect.Outcome{Result: &model.PipelineResult{Contacts: []model.Contact{}}}, nil
	}
	rows := []batchRow{
		{Line: 2, Request: request("slow", "A")},
		{Line: 3, Request: request("fast", "B")},
		{Line: 4, Request: request("fast", "C")},
	}

	results := processBatch(context.Background(), rows, 3, fastPolicy(1), search)

	require.Len(t, results, 3)
	for i, r := range results {
		assert.Equal(t, rows[i].Line, r.Line)
		assert.Equal(t, rows[i].Request.Location, r.Location)
	}
}

func TestProcessBatch_AgainstService(t *testing.T) {
	fv := newFakeVendor(t, vendorReply{200, searchOK}, vendorReply{200, bulkOK})
	env := newTestEnv(t, envOpts{vendor: fv})

	rows := []batchRow{
		{Line: 2, Request: request("CTO", "Austin")},
		{Line: 3, Request: request("", "Austin")},
	}
	results := processBatch(context.Background(), rows, 2, fastPolicy(2), env.Service.Search)

	require.Len(t, results, 2)
	assert.Len(t, results[0].Contacts, 1)
	assert.NotEmpty(t, results[0].RunID)
	assert.Equal(t, contacts.StepValidate, results[1].Error.Step)
	assert.Equal(t, 1, results[1].Attempts)
	assert.Equal(t, int32(1), fv.searchHits.Load())
}

func TestWriteBatchResults(t *testing.T) {
	var buf bytes.Buffer
	err := writeBatchResults(&buf, []batchResult{
		{Line: 2, Title: "CTO", Location: "Austin", Attempts: 1, Contacts: []model.Contact{}},
		{Line: 3, Title: "", Location: "X", Attempts: 1, Contacts: []model.Contact{}, Status: 400,
			Error: &errorBody{Step: contacts.StepValidate, Error: "Both title and location are required"}},
	})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var first map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.NotContains(t, first, "error")
	assert.Equal(t, []any{}, first["contacts"])

	var second map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, float64(400), second["status"])
}
