// Package pipeline runs the diff → classification → summary → message stages
// as one deterministic unit.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/relicta-tech/commitgen/internal/analysis"
	"github.com/relicta-tech/commitgen/internal/diff"
	"github.com/relicta-tech/commitgen/internal/domain/changes"
	rperrors "github.com/relicta-tech/commitgen/internal/errors"
	"github.com/relicta-tech/commitgen/internal/formatter"
	"github.com/relicta-tech/commitgen/internal/infrastructure/ai"
	"github.com/relicta-tech/commitgen/internal/summary"
)

// Config is the explicit configuration of a pipeline.
type Config struct {
	// Provider selects the generation backend.
	Provider ai.Provider

	// Timeout bounds the generation call.
	Timeout time.Duration

	// MaxHeaderLength bounds the rendered header; values below 20 are
	// raised to 20 and zero means 72.
	MaxHeaderLength int

	// IncludeBody adds a per-file change list to the message body.
	IncludeBody bool
}

// DefaultConfig returns a template-only configuration.
func DefaultConfig() Config {
	return Config{
		Provider:        ai.ProviderDisabled,
		Timeout:         summary.DefaultTimeout,
		MaxHeaderLength: changes.DefaultMaxHeaderLength,
	}
}

// Cache stores encoded results by key. Implementations are best effort.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Result is the outcome of one run.
type Result struct {
	RunID          string
	Message        changes.CommitMessage
	Facts          []diff.FileFact
	Classification analysis.Classification
	Summary        summary.Summary

	// Degraded is set when the run fell back somewhere: an empty change
	// set, a failed generation, or a canceled context.
	Degraded bool
	Reasons  []string

	// Trace lists the states the run visited.
	Trace []string

	Cached   bool
	Duration time.Duration
}

// Text returns the rendered commit message.
func (r *Result) Text() string {
	return r.Message.Render()
}

// Pipeline composes the parser, classifier, summarizer and formatter.
type Pipeline struct {
	config     Config
	classifier *analysis.Classifier
	summarizer *summary.Summarizer
	formatter  *formatter.Formatter
	generator  ai.Generator
	cache      Cache
	logger     *slog.Logger
	group      singleflight.Group
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithGenerator sets the generation backend, overriding the one the
// provider would select.
func WithGenerator(g ai.Generator) Option {
	return func(p *Pipeline) {
		p.generator = g
	}
}

// WithCache enables result caching.
func WithCache(c Cache) Option {
	return func(p *Pipeline) {
		p.cache = c
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithClassifier replaces the default classifier.
func WithClassifier(c *analysis.Classifier) Option {
	return func(p *Pipeline) {
		if c != nil {
			p.classifier = c
		}
	}
}

// New creates a pipeline. With a local or cloud provider and no explicit
// generator, the generator is built from the provider defaults; a disabled
// provider ignores any generator.
func New(cfg Config, opts ...Option) (*Pipeline, error) {
	if cfg.Provider == "" {
		cfg.Provider = ai.ProviderDisabled
	}
	if !cfg.Provider.Valid() {
		return nil, rperrors.Config("pipeline.New", fmt.Sprintf("unknown provider %q", cfg.Provider))
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = summary.DefaultTimeout
	}

	p := &Pipeline{
		config: cfg,
		logger: slog.Default().With("component", "pipeline"),
	}
	for _, opt := range opts {
		opt(p)
	}

	switch {
	case cfg.Provider == ai.ProviderDisabled:
		p.generator = ai.Disabled()
	case p.generator == nil:
		g, err := ai.NewGenerator(ai.WithProvider(cfg.Provider), ai.WithTimeout(cfg.Timeout))
		if err != nil {
			return nil, err
		}
		p.generator = g
	}

	if p.classifier == nil {
		p.classifier = analysis.NewClassifier(analysis.WithLogger(p.logger))
	}
	p.summarizer = summary.New(
		summary.WithGenerator(p.generator),
		summary.WithTimeout(cfg.Timeout),
		summary.WithLogger(p.logger),
	)
	p.formatter = formatter.New(formatter.Options{
		MaxHeaderLength: cfg.MaxHeaderLength,
		IncludeBody:     cfg.IncludeBody,
	})
	return p, nil
}

// Config returns the effective configuration.
func (p *Pipeline) Config() Config {
	cfg := p.config
	cfg.MaxHeaderLength = p.formatter.MaxHeaderLength()
	return cfg
}

// Formatter returns the formatter used for messages.
func (p *Pipeline) Formatter() *formatter.Formatter {
	return p.formatter
}

// Generator returns the generation backend.
func (p *Pipeline) Generator() ai.Generator {
	return p.generator
}

// Close releases the generation backend.
func (p *Pipeline) Close() error {
	return ai.Close(p.generator)
}

// Run turns diff text into a commit message. The only error it returns is a
// parse error for input that is not a diff; every other failure degrades
// the result instead.
//
// Identical concurrent runs share one execution that is detached from any
// single caller's cancellation. A caller whose ctx ends while waiting gets
// its own template result, and the shared run carries on for the others.
func (p *Pipeline) Run(ctx context.Context, diffText string) (*Result, error) {
	key := p.cacheKey(diffText)
	if ctx.Err() != nil {
		return p.run(ctx, key, diffText)
	}

	shared := context.WithoutCancel(ctx)
	ch := p.group.DoChan(key, func() (any, error) {
		return p.run(shared, key, diffText)
	})

	select {
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		res := r.Val.(*Result)
		if r.Shared {
			p.logger.Debug("joined in-flight run", "run_id", res.RunID)
		}
		return res, nil
	case <-ctx.Done():
		p.logger.Debug("caller canceled, leaving shared run")
		return p.run(ctx, key, diffText)
	}
}

func (p *Pipeline) run(ctx context.Context, key, diffText string) (*Result, error) {
	start := time.Now()
	runID := uuid.NewString()
	log := p.logger.With("run_id", runID)

	m, err := newRunMachine(p.formatter.MaxHeaderLength())
	if err != nil {
		return nil, rperrors.Wrap(err, rperrors.KindInternal, "pipeline.Run", "state machine")
	}
	res := &Result{RunID: runID}

	degrade := func(reason string) {
		res.Reasons = append(res.Reasons, reason)
		if m.current() != StateDegraded {
			m.send(EventDegrade)
		}
		log.Warn("run degraded", "reason", reason, "state", m.current())
	}
	checkCanceled := func() {
		if ctx.Err() != nil && !containsReason(res.Reasons, reasonCanceled) {
			degrade(reasonCanceled)
		}
	}

	facts, err := diff.Parse(diffText)
	if err != nil {
		m.send(EventParseFailed)
		log.Debug("parse failed", "error", err, "trace", m.Trace())
		return nil, err
	}
	res.Facts = facts
	m.send(EventParsed)
	log.Debug("parsed", "files", len(facts))

	if diff.IsEmpty(facts) {
		degrade(reasonEmpty)
	}
	checkCanceled()

	if cached, ok := p.lookup(ctx, log, key); ok {
		return p.fromCache(res, cached, m, start), nil
	}

	res.Classification = p.classifier.Classify(analysis.Input{Facts: facts, Text: diffText})
	m.send(EventClassified)
	log.Debug("classified",
		"type", res.Classification.Type,
		"scope", res.Classification.Scope,
		"rule", res.Classification.Rule,
		"confidence", res.Classification.Confidence,
	)
	checkCanceled()

	res.Summary = p.summarizer.Summarize(ctx, facts, res.Classification)
	m.send(EventSummarized)
	if res.Summary.Fallback {
		degrade(reasonFallback)
	}
	checkCanceled()

	res.Message = p.formatter.Format(res.Classification, res.Summary.Text, facts)
	m.send(EventFormatted)
	log.Debug("formatted", "header", res.Message.Header(), "truncated", res.Message.Truncated())

	m.finish(len([]rune(res.Message.Header())))
	res.Trace = m.Trace()
	res.Degraded = m.degraded()
	res.Duration = time.Since(start)

	if !res.Degraded {
		p.store(ctx, log, key, res)
	}
	log.Debug("run complete", "trace", res.Trace, "duration", res.Duration)
	return res, nil
}

const (
	reasonEmpty    = "no changes detected"
	reasonFallback = "generation failed, template used"
	reasonCanceled = "context canceled"
)

func containsReason(reasons []string, r string) bool {
	for _, x := range reasons {
		if x == r {
			return true
		}
	}
	return false
}

// cacheKey hashes the diff together with everything that changes the output.
func (p *Pipeline) cacheKey(diffText string) string {
	h := sha256.New()
	h.Write([]byte(diffText))
	fmt.Fprintf(h, "\x00%s|%s|%d|%t", p.config.Provider, generatorName(p.generator), p.formatter.MaxHeaderLength(), p.config.IncludeBody)
	return hex.EncodeToString(h.Sum(nil))
}

func generatorName(g ai.Generator) string {
	if g == nil {
		return ""
	}
	return g.Name()
}

// cachedResult is the stored form of a non-degraded result.
type cachedResult struct {
	Type           changes.CommitType `json:"type"`
	Scope          string             `json:"scope,omitempty"`
	Description    string             `json:"description"`
	Body           string             `json:"body,omitempty"`
	Breaking       bool               `json:"breaking,omitempty"`
	BreakingReason string             `json:"breaking_reason,omitempty"`
	Truncated      bool               `json:"truncated,omitempty"`

	Classification analysis.Classification `json:"classification"`
	SummaryText    string                  `json:"summary"`
	SummarySource  summary.Source          `json:"summary_source"`
	Generator      string                  `json:"generator,omitempty"`
}

func (c cachedResult) message() changes.CommitMessage {
	opts := []changes.CommitMessageOption{changes.WithScope(c.Scope), changes.WithBody(c.Body)}
	if c.Breaking {
		opts = append(opts, changes.WithBreaking(c.BreakingReason))
	}
	if c.Truncated {
		opts = append(opts, changes.WithTruncated())
	}
	return changes.NewCommitMessage(c.Type, c.Description, opts...)
}

func (p *Pipeline) lookup(ctx context.Context, log *slog.Logger, key string) (cachedResult, bool) {
	if p.cache == nil {
		return cachedResult{}, false
	}
	raw, ok, err := p.cache.Get(ctx, key)
	if err != nil {
		log.Warn("cache read failed", "error", err)
		return cachedResult{}, false
	}
	if !ok {
		return cachedResult{}, false
	}
	var c cachedResult
	if err := json.Unmarshal(raw, &c); err != nil || !c.Type.IsValid() {
		log.Warn("ignoring unreadable cache entry", "error", err)
		return cachedResult{}, false
	}
	return c, true
}

func (p *Pipeline) fromCache(res *Result, c cachedResult, m *runMachine, start time.Time) *Result {
	res.Cached = true
	res.Classification = c.Classification
	res.Summary = summary.Summary{Text: c.SummaryText, Source: c.SummarySource, Generator: c.Generator}
	res.Message = c.message()
	m.send(EventClassified)
	m.send(EventSummarized)
	m.send(EventFormatted)
	m.finish(len([]rune(res.Message.Header())))
	res.Trace = m.Trace()
	res.Degraded = m.degraded()
	res.Duration = time.Since(start)
	return res
}

func (p *Pipeline) store(ctx context.Context, log *slog.Logger, key string, res *Result) {
	if p.cache == nil {
		return
	}
	msg := res.Message
	raw, err := json.Marshal(cachedResult{
		Type:           msg.Type(),
		Scope:          msg.Scope(),
		Description:    msg.Description(),
		Body:           msg.Body(),
		Breaking:       msg.IsBreaking(),
		BreakingReason: msg.BreakingReason(),
		Truncated:      msg.Truncated(),
		Classification: res.Classification,
		SummaryText:    res.Summary.Text,
		SummarySource:  res.Summary.Source,
		Generator:      res.Summary.Generator,
	})
	if err != nil {
		log.Warn("cache encode failed", "error", err)
		return
	}
	if err := p.cache.Set(ctx, key, raw); err != nil {
		log.Warn("cache write failed", "error", err)
	}
}
