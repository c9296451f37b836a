// Package translator adapts pluggable translation backends behind one
// primary/fallback contract, per §4.2. Grounded on the teacher's
// internal/aws/translate.go (TranslateService) and the primary/fallback
// shape of internal/aws/service.go's runPipeline, generalized to a
// swappable-provider capability interface with latency histograms.
package translator

import (
	"context"
	"time"

	"github.com/kgr0831/relay/internal/metrics"
)

// Request is one translation call: source text, optional known source
// language, the target languages requested, and leading context segments
// (used for batched-context providers per §4.2).
type Request struct {
	RoomID       string
	Text         string
	FromLang     string // "" means "let the provider detect"
	Targets      []string
	ContextTexts []string
}

// Target is one per-language translation result.
type Target struct {
	Lang         string
	Text         string
	SrcSentLen   []int
	TransSentLen []int
	Provider     string
}

// Provider is the capability interface a translation backend implements.
// Ready reports whether the provider has usable credentials/configuration;
// when false the Client never calls it and instead returns identity records.
type Provider interface {
	Name() string
	Ready() bool
	Translate(ctx context.Context, req Request) ([]Target, error)
}

// Client is the room core's Translator — one primary provider with one
// fallback, observed into latency histograms for both outcomes.
type Client struct {
	primary  Provider
	fallback Provider
	metrics  *metrics.Handle

	primaryTimeout  time.Duration
	fallbackTimeout time.Duration
}

// New builds a Client. primary and fallback may be the same provider (a
// degenerate no-fallback configuration) or different; both may be a Noop.
func New(primary, fallback Provider, m *metrics.Handle) *Client {
	return &Client{
		primary:         primary,
		fallback:        fallback,
		metrics:         m,
		primaryTimeout:  10 * time.Second,
		fallbackTimeout: 15 * time.Second,
	}
}

// Translate runs the primary/fallback/identity contract from §4.2.
func (c *Client) Translate(ctx context.Context, req Request) []Target {
	if len(req.Targets) == 0 {
		return nil
	}

	if !c.primary.Ready() {
		return c.identity(req, "noop")
	}

	pctx, cancel := context.WithTimeout(ctx, c.primaryTimeout)
	defer cancel()

	start := time.Now()
	results, err := c.primary.Translate(pctx, req)
	c.observe(req.Targets, c.primary.Name(), time.Since(start), err)
	if err == nil && validResults(results, req.Targets) {
		return results
	}

	if c.fallback == nil || !c.fallback.Ready() {
		return c.identity(req, "none")
	}

	fctx, fcancel := context.WithTimeout(ctx, c.fallbackTimeout)
	defer fcancel()

	start = time.Now()
	results, err = c.fallback.Translate(fctx, req)
	c.observe(req.Targets, c.fallback.Name(), time.Since(start), err)
	if err == nil && validResults(results, req.Targets) {
		return results
	}

	return c.identity(req, "none")
}

func validResults(results []Target, targets []string) bool {
	if len(results) != len(targets) {
		return false
	}
	return true
}

func (c *Client) identity(req Request, provider string) []Target {
	out := make([]Target, 0, len(req.Targets))
	n := len([]rune(req.Text))
	for _, lang := range req.Targets {
		out = append(out, Target{
			Lang:         lang,
			Text:         req.Text,
			SrcSentLen:   []int{n},
			TransSentLen: []int{n},
			Provider:     provider,
		})
	}
	return out
}

func (c *Client) observe(targets []string, provider string, dur time.Duration, err error) {
	if c.metrics == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	for _, lang := range targets {
		c.metrics.TranslatorLatency.WithLabelValues(lang, provider, outcome).Observe(dur.Seconds())
	}
}
