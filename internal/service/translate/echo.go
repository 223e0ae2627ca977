package translate

import "context"

// Echo is a pass-through client for running without translator credentials.
// Every target receives the untranslated source text.
type Echo struct{}

func (Echo) Translate(ctx context.Context, text, to, category string) (string, error) {
	return text, nil
}
