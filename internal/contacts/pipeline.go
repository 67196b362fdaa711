package contacts

import (
	"context"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/prospect-cli/internal/model"
	"github.com/sells-group/prospect-cli/pkg/apollo"
)

// Request is the inbound search body before validation.
type Request struct {
	Title    string   `json:"title"`
	Location string   `json:"location"`
	Industry string   `json:"industry,omitempty"`
	Limit    *float64 `json:"limit,omitempty"`
}

// ParseCriteria validates a request. Title and location are required; a
// missing limit defaults to 10 and any other value is floored and clamped
// into [1, 10].
func ParseCriteria(req Request) (model.SearchCriteria, error) {
	title := strings.TrimSpace(req.Title)
	location := strings.TrimSpace(req.Location)
	if title == "" || location == "" {
		return model.SearchCriteria{}, ValidationError(missingFieldsMsg, ErrMissingFields)
	}

	limit := model.DefaultLimit
	if req.Limit != nil {
		f := math.Floor(*req.Limit)
		switch {
		case math.IsNaN(f), f < model.MinLimit:
			limit = model.MinLimit
		case f > model.MaxLimit:
			limit = model.MaxLimit
		default:
			limit = int(f)
		}
	}

	return model.SearchCriteria{
		Title:    title,
		Location: location,
		Industry: strings.TrimSpace(req.Industry),
		Limit:    limit,
	}, nil
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithPerPage sets the page size requested from people search.
func WithPerPage(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.perPage = n
		}
	}
}

// Pipeline runs search, selection, enrichment and reduction for one request.
// It holds no per-request state and is safe for concurrent use.
type Pipeline struct {
	client  apollo.Client
	perPage int
}

// New creates a Pipeline. A nil client means the vendor key is not
// configured; every run then fails with an internal configuration error.
func New(client apollo.Client, opts ...Option) *Pipeline {
	p := &Pipeline{client: client, perPage: apollo.DefaultPerPage}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Configured reports whether a vendor client is present.
func (p *Pipeline) Configured() bool {
	return p.client != nil
}

// Run validates req and resolves it.
func (p *Pipeline) Run(ctx context.Context, req Request) (*model.PipelineResult, error) {
	criteria, err := ParseCriteria(req)
	if err != nil {
		return nil, err
	}
	return p.Resolve(ctx, criteria)
}

// Resolve runs the network steps for validated criteria. Each vendor call is
// attempted exactly once. Once started, the run ignores caller cancellation
// and ends only on success or a vendor failure; the client timeout bounds it.
func (p *Pipeline) Resolve(ctx context.Context, criteria model.SearchCriteria) (*model.PipelineResult, error) {
	if p.client == nil {
		return nil, configError()
	}
	ctx = context.WithoutCancel(ctx)
	log := zap.L().With(
		zap.String("title", criteria.Title),
		zap.String("location", criteria.Location),
		zap.Int("limit", criteria.Limit),
	)

	search, err := p.client.Search(ctx, p.searchRequest(criteria))
	if err != nil {
		se := upstreamError(StepSearch, err)
		log.Warn("contacts: search failed", zap.Int("status", se.Status), zap.Error(err))
		return nil, se
	}

	result := &model.PipelineResult{
		Contacts: []model.Contact{},
		Debug: model.Debug{
			Search:            search.Body,
			SelectedPersonIDs: []string{},
			BulkDetails:       []model.EnrichmentDetail{},
		},
	}

	selected := SelectVerified(search.Value, criteria.Limit)
	log.Debug("contacts: candidates selected", zap.Int("selected", len(selected)))
	if len(selected) == 0 {
		return result, nil
	}

	details, ids := BuildDetails(selected)
	result.Debug.SelectedPersonIDs = ids
	result.Debug.BulkDetails = details

	bulk, err := p.client.BulkMatch(ctx, apollo.BulkMatchRequest{
		Details:              toAPIDetails(details),
		RevealPersonalEmails: false,
		RevealWorkEmails:     true,
	})
	if err != nil {
		se := upstreamError(StepEnrich, err)
		log.Warn("contacts: enrichment failed", zap.Int("status", se.Status), zap.Error(err))
		return nil, se
	}

	result.Debug.Enrichment = bulk.Body
	result.Contacts = Reduce(bulk.Value, criteria.Limit)
	log.Debug("contacts: resolved", zap.Int("contacts", len(result.Contacts)))
	return result, nil
}

func (p *Pipeline) searchRequest(c model.SearchCriteria) apollo.SearchRequest {
	req := apollo.SearchRequest{
		PerPage:         p.perPage,
		PersonTitles:    []string{c.Title},
		PersonLocations: []string{c.Location},
	}
	if c.Industry != "" {
		req.Industries = []string{c.Industry}
		req.QOrganizationKeywords = []string{c.Industry}
	}
	return req
}

func toAPIDetails(details []model.EnrichmentDetail) []apollo.Detail {
	out := make([]apollo.Detail, len(details))
	for i, d := range details {
		out[i] = apollo.Detail{
			FirstName:   d.FirstName,
			LastName:    d.LastName,
			LinkedInURL: d.LinkedInURL,
		}
	}
	return out
}
