package translator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	name    string
	ready   bool
	results []Target
	err     error
	calls   int
}

func (p *fakeProvider) Name() string { return p.name }
func (p *fakeProvider) Ready() bool  { return p.ready }
func (p *fakeProvider) Translate(ctx context.Context, req Request) ([]Target, error) {
	p.calls++
	return p.results, p.err
}

func TestTranslate_EmptyTargetsReturnsNil(t *testing.T) {
	c := New(Noop{}, nil, nil)
	got := c.Translate(context.Background(), Request{Text: "hi"})
	assert.Nil(t, got)
}

func TestTranslate_PrimaryNotReadyReturnsIdentity(t *testing.T) {
	primary := &fakeProvider{name: "aws", ready: false}
	c := New(primary, nil, nil)

	got := c.Translate(context.Background(), Request{Text: "hello", Targets: []string{"fr"}})
	require.Len(t, got, 1)
	assert.Equal(t, "hello", got[0].Text)
	assert.Equal(t, "noop", got[0].Provider)
	assert.Equal(t, 0, primary.calls, "a not-ready primary must never be called")
}

func TestTranslate_PrimarySucceedsUsesItsResults(t *testing.T) {
	primary := &fakeProvider{name: "aws", ready: true, results: []Target{{Lang: "fr", Text: "bonjour", Provider: "aws"}}}
	c := New(primary, nil, nil)

	got := c.Translate(context.Background(), Request{Text: "hello", Targets: []string{"fr"}})
	require.Len(t, got, 1)
	assert.Equal(t, "bonjour", got[0].Text)
	assert.Equal(t, "aws", got[0].Provider)
}

func TestTranslate_PrimaryFailsFallsBackToSecondProvider(t *testing.T) {
	primary := &fakeProvider{name: "aws", ready: true, err: errors.New("boom")}
	fallback := &fakeProvider{name: "gcp", ready: true, results: []Target{{Lang: "fr", Text: "bonjour", Provider: "gcp"}}}
	c := New(primary, fallback, nil)

	got := c.Translate(context.Background(), Request{Text: "hello", Targets: []string{"fr"}})
	require.Len(t, got, 1)
	assert.Equal(t, "gcp", got[0].Provider)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, fallback.calls)
}

func TestTranslate_PrimaryAndFallbackBothFailReturnsIdentity(t *testing.T) {
	primary := &fakeProvider{name: "aws", ready: true, err: errors.New("boom")}
	fallback := &fakeProvider{name: "gcp", ready: true, err: errors.New("boom too")}
	c := New(primary, fallback, nil)

	got := c.Translate(context.Background(), Request{Text: "hello", Targets: []string{"fr", "es"}})
	require.Len(t, got, 2)
	for _, target := range got {
		assert.Equal(t, "hello", target.Text)
		assert.Equal(t, "none", target.Provider)
	}
}

func TestTranslate_MismatchedResultCountTreatedAsFailure(t *testing.T) {
	primary := &fakeProvider{name: "aws", ready: true, results: []Target{{Lang: "fr", Text: "bonjour"}}}
	c := New(primary, nil, nil)

	got := c.Translate(context.Background(), Request{Text: "hello", Targets: []string{"fr", "es"}})
	require.Len(t, got, 2)
	assert.Equal(t, "none", got[0].Provider)
}

func TestNoop_TranslatesIdentically(t *testing.T) {
	results, err := Noop{}.Translate(context.Background(), Request{Text: "hi", Targets: []string{"fr", "es"}})
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, "hi", r.Text)
		assert.Equal(t, "noop", r.Provider)
	}
}
