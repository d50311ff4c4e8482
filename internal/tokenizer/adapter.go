package tokenizer

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/medrex/dlt-consent/pkg/interfaces"
	"github.com/medrex/dlt-consent/pkg/logger"
	"github.com/medrex/dlt-consent/pkg/monitoring"
	"github.com/medrex/dlt-consent/pkg/types"
)

const (
	opTokenize   = "tokenize"
	opDetokenize = "detokenize"
)

// Record is implemented by every domain type carrying PII fields
type Record interface {
	Tokenizable() []*string
}

// Adapter de-identifies values on the way to the ledger and re-identifies them on the way back.
// Every call is a no-op while de-identification is disabled; the flag is read per call.
type Adapter struct {
	tokenizer interfaces.Tokenizer
	flags     interfaces.FlagSource
	metrics   *monitoring.MetricsCollector
	logger    *logger.Logger
}

// NewAdapter creates a new tokenizer adapter
func NewAdapter(tokenizer interfaces.Tokenizer, flags interfaces.FlagSource, metrics *monitoring.MetricsCollector, log *logger.Logger) *Adapter {
	return &Adapter{
		tokenizer: tokenizer,
		flags:     flags,
		metrics:   metrics,
		logger:    log,
	}
}

// Enabled reports whether values are currently being tokenized
func (a *Adapter) Enabled() bool {
	return a.flags.DeIdentifyEnabled()
}

// Tokenize replaces a plaintext value with its token. Empty values pass through.
func (a *Adapter) Tokenize(ctx context.Context, value string) (string, error) {
	if !a.Enabled() || value == "" {
		return value, nil
	}

	token, err := a.tokenizer.Tokenize(ctx, value)
	a.metrics.RecordTokenizerOp(opTokenize, err == nil)
	if err != nil {
		return "", fmt.Errorf("tokenize: %w", err)
	}
	return token, nil
}

// Detokenize replaces a token with the original value. Empty values pass through.
func (a *Adapter) Detokenize(ctx context.Context, token string) (string, error) {
	if !a.Enabled() || token == "" {
		return token, nil
	}

	value, err := a.tokenizer.Detokenize(ctx, token)
	a.metrics.RecordTokenizerOp(opDetokenize, err == nil)
	if err != nil {
		return "", fmt.Errorf("detokenize: %w", err)
	}
	return value, nil
}

// RequireToken tokenizes a value that addresses a ledger record.
// A missing value or a tokenizer failure means the record cannot be found.
func (a *Adapter) RequireToken(ctx context.Context, value, field string) (string, error) {
	if value == "" {
		return "", types.NewNotFoundError(types.ErrCodeNotFound, fmt.Sprintf("%s not found", field))
	}

	token, err := a.Tokenize(ctx, value)
	if err != nil {
		a.logger.WithContext(ctx).WithError(err).WithField("field", field).Warn("Failed to tokenize lookup key")
		return "", types.NewNotFoundError(types.ErrCodeNotFound, fmt.Sprintf("%s not found", field))
	}
	return token, nil
}

// TokenizeFields tokenizes the given fields in place, concurrently
func (a *Adapter) TokenizeFields(ctx context.Context, fields ...*string) error {
	return a.apply(ctx, a.Tokenize, fields)
}

// DetokenizeFields detokenizes the given fields in place, concurrently
func (a *Adapter) DetokenizeFields(ctx context.Context, fields ...*string) error {
	return a.apply(ctx, a.Detokenize, fields)
}

// TokenizeRecord tokenizes every PII field of r in place
func (a *Adapter) TokenizeRecord(ctx context.Context, r Record) error {
	return a.TokenizeFields(ctx, r.Tokenizable()...)
}

// DetokenizeRecord detokenizes every PII field of r in place
func (a *Adapter) DetokenizeRecord(ctx context.Context, r Record) error {
	return a.DetokenizeFields(ctx, r.Tokenizable()...)
}

func (a *Adapter) apply(ctx context.Context, fn func(context.Context, string) (string, error), fields []*string) error {
	if !a.Enabled() {
		return nil
	}

	// Results are staged so a failure leaves the record untouched
	out := make([]string, len(fields))
	g, gctx := errgroup.WithContext(ctx)
	for i, field := range fields {
		i, field := i, field
		g.Go(func() error {
			v, err := fn(gctx, *field)
			if err != nil {
				return err
			}
			out[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, field := range fields {
		*field = out[i]
	}
	return nil
}

// DetokenizeEach re-identifies every element of items concurrently. An element that fails
// is logged and dropped; the remaining elements keep their relative order.
func DetokenizeEach[T any, PT interface {
	*T
	Record
}](ctx context.Context, a *Adapter, items []T) []T {
	if !a.Enabled() || len(items) == 0 {
		return items
	}

	ok := make([]bool, len(items))
	var g errgroup.Group
	for i := range items {
		i := i
		g.Go(func() error {
			if err := a.DetokenizeRecord(ctx, PT(&items[i])); err != nil {
				a.logger.WithContext(ctx).WithFields(logrus.Fields{
					"component": "tokenizer",
					"index":     i,
				}).WithError(err).Warn("Dropping collection element that failed re-identification")
				return nil
			}
			ok[i] = true
			return nil
		})
	}
	_ = g.Wait()

	kept := make([]T, 0, len(items))
	for i, item := range items {
		if ok[i] {
			kept = append(kept, item)
		}
	}
	return kept
}

// DetokenizeValues re-identifies a list of plain values, dropping the ones that fail
func (a *Adapter) DetokenizeValues(ctx context.Context, tokens []string) []string {
	if !a.Enabled() || len(tokens) == 0 {
		return tokens
	}

	out := make([]string, len(tokens))
	ok := make([]bool, len(tokens))
	var g errgroup.Group
	for i, token := range tokens {
		i, token := i, token
		g.Go(func() error {
			v, err := a.Detokenize(ctx, token)
			if err != nil {
				a.logger.WithContext(ctx).WithError(err).WithField("index", i).Warn("Dropping value that failed re-identification")
				return nil
			}
			out[i], ok[i] = v, true
			return nil
		})
	}
	_ = g.Wait()

	kept := make([]string, 0, len(tokens))
	for i := range out {
		if ok[i] {
			kept = append(kept, out[i])
		}
	}
	return kept
}
