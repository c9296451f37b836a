package translator

import "context"

// Noop is the credential-less identity provider: source text flows to every
// listener unchanged, stamped provider="noop" per §4.2.
type Noop struct{}

func (Noop) Name() string  { return "noop" }
func (Noop) Ready() bool   { return true }

func (Noop) Translate(_ context.Context, req Request) ([]Target, error) {
	n := len([]rune(req.Text))
	out := make([]Target, 0, len(req.Targets))
	for _, lang := range req.Targets {
		out = append(out, Target{
			Lang:         lang,
			Text:         req.Text,
			SrcSentLen:   []int{n},
			TransSentLen: []int{n},
			Provider:     "noop",
		})
	}
	return out, nil
}
