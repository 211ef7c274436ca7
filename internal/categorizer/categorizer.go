// Package categorizer assigns spending categories to transactions from an
// ordered keyword table, falling back to named-entity recognition for text no
// rule matches.
package categorizer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dvloznov/spend-insights/internal/domain"
	"github.com/dvloznov/spend-insights/internal/logger"
	"golang.org/x/sync/errgroup"
)

// Categories assigned outside the rule table.
const (
	CategoryShopping = "Shopping"
	CategoryOthers   = "Others"
	CategoryFood     = "Food"
)

const (
	defaultFallbackTimeout = 5 * time.Second
	defaultConcurrency     = 4
	fallbackLanguage       = "en"
)

// Categorizer maps transactions to categories. It is safe for concurrent use.
type Categorizer struct {
	rules       Rules
	recognizer  EntityRecognizer
	overrides   map[string]string
	timeout     time.Duration
	concurrency int
}

// Option configures a Categorizer.
type Option func(*Categorizer)

// WithFallbackTimeout bounds each entity-recognition call.
func WithFallbackTimeout(d time.Duration) Option {
	return func(c *Categorizer) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithConcurrency bounds parallel fallback lookups in CategorizeBatch.
func WithConcurrency(n int) Option {
	return func(c *Categorizer) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// WithOverrides pins merchants to categories ahead of the rule table.
// Keys are matched against the case-folded merchant exactly.
func WithOverrides(overrides map[string]string) Option {
	return func(c *Categorizer) {
		for merchant, category := range overrides {
			c.overrides[strings.ToLower(strings.TrimSpace(merchant))] = category
		}
	}
}

// New creates a Categorizer. A nil recognizer behaves like NoopRecognizer.
func New(rules Rules, recognizer EntityRecognizer, opts ...Option) *Categorizer {
	if recognizer == nil {
		recognizer = NoopRecognizer{}
	}
	c := &Categorizer{
		rules:       rules,
		recognizer:  recognizer,
		overrides:   make(map[string]string),
		timeout:     defaultFallbackTimeout,
		concurrency: defaultConcurrency,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Categorize returns tx with Category set. Every other field is unchanged.
// It never fails: recognizer errors and timeouts resolve to CategoryOthers.
func (c *Categorizer) Categorize(ctx context.Context, tx domain.Transaction) domain.Transaction {
	tx.Category = c.category(ctx, tx)
	return tx
}

// CategorizeBatch validates the batch, then categorizes every transaction that
// has no category yet. The input slice is not modified and order is preserved.
func (c *Categorizer) CategorizeBatch(ctx context.Context, txs []domain.Transaction) ([]domain.Transaction, error) {
	if err := domain.ValidateTransactions(txs); err != nil {
		return nil, fmt.Errorf("CategorizeBatch: %w", err)
	}

	out := make([]domain.Transaction, len(txs))
	copy(out, txs)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i := range out {
		if out[i].IsCategorized() {
			continue
		}
		g.Go(func() error {
			out[i].Category = c.category(gctx, out[i])
			return nil
		})
	}
	// Categorize never fails, so Wait only synchronises.
	_ = g.Wait()

	return out, nil
}

func (c *Categorizer) category(ctx context.Context, tx domain.Transaction) string {
	if cat, ok := c.overrides[tx.MerchantKey()]; ok {
		return cat
	}
	if cat, ok := c.rules.Match(tx.Merchant, tx.RawDescription); ok {
		return cat
	}
	return c.fallback(ctx, tx)
}

type detectResult struct {
	entities []Entity
	err      error
}

func (c *Categorizer) fallback(ctx context.Context, tx domain.Transaction) string {
	log := logger.FromContext(ctx)
	text := strings.TrimSpace(tx.Merchant + " " + tx.RawDescription)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	// Run the call in its own goroutine so a recognizer that ignores ctx
	// still cannot hold the caller past the timeout.
	done := make(chan detectResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- detectResult{err: fmt.Errorf("entity recognizer panicked: %v", r)}
			}
		}()
		entities, err := c.recognizer.DetectEntities(ctx, text, fallbackLanguage)
		done <- detectResult{entities: entities, err: err}
	}()

	var res detectResult
	select {
	case res = <-done:
	case <-ctx.Done():
		res.err = ctx.Err()
	}

	if res.err != nil {
		log.Debug().
			Err(res.err).
			Str("merchant", tx.Merchant).
			Msg("Entity recognition failed, using fallback category")
		return CategoryOthers
	}

	for _, e := range res.entities {
		if e.Type == EntityTypeOrganization {
			return CategoryShopping
		}
	}
	return CategoryOthers
}
