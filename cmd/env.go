package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/prospect-cli/internal/config"
	"github.com/sells-group/prospect-cli/internal/contacts"
	"github.com/sells-group/prospect-cli/internal/prospect"
	"github.com/sells-group/prospect-cli/internal/questions"
	"github.com/sells-group/prospect-cli/internal/store"
	"github.com/sells-group/prospect-cli/pkg/anthropic"
	"github.com/sells-group/prospect-cli/pkg/apollo"
)

// appEnv holds the initialized store, service and question generator shared
// by the commands.
type appEnv struct {
	Store     store.Store // nil when history is disabled
	Service   *prospect.Service
	Questions *questions.Generator // nil when no LLM key is configured
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initEnv validates cfg for mode, opens the store and wires the clients.
// Callers should defer env.Close().
func initEnv(ctx context.Context, c *config.Config, mode string) (*appEnv, error) {
	if err := c.Validate(mode); err != nil {
		return nil, err
	}

	st, err := store.Open(ctx, c.Store)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	if st == nil {
		zap.L().Info("run history disabled")
	}

	return &appEnv{
		Store:     st,
		Service:   prospect.NewService(newPipeline(c.Apollo), st),
		Questions: newQuestionGenerator(c.Anthropic),
	}, nil
}

// newPipeline builds the pipeline. Without a key the pipeline has no client
// and every search fails with a configuration error.
func newPipeline(c config.ApolloConfig) *contacts.Pipeline {
	var opts []contacts.Option
	if c.PerPage > 0 {
		opts = append(opts, contacts.WithPerPage(c.PerPage))
	}
	if c.Key == "" {
		zap.L().Warn("PROSPECT_APOLLO_KEY not set, people searches will fail")
		return contacts.New(nil, opts...)
	}

	clientOpts := []apollo.Option{apollo.WithTimeout(time.Duration(c.TimeoutSecs) * time.Second)}
	if c.BaseURL != "" {
		clientOpts = append(clientOpts, apollo.WithBaseURL(c.BaseURL))
	}
	return contacts.New(apollo.NewClient(c.Key, clientOpts...), opts...)
}

func newQuestionGenerator(c config.AnthropicConfig) *questions.Generator {
	if c.Key == "" {
		zap.L().Debug("PROSPECT_ANTHROPIC_KEY not set, question generation disabled")
		return nil
	}
	return questions.NewGenerator(anthropic.NewClient(c.Key), c.Model, c.MaxTokens)
}
