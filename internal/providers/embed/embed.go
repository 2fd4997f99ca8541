package embed

import "context"

// Provider turns resume text into a vector for the similar-candidates
// lookup. Embedding is best-effort: callers treat failures as "no vector".
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Close() error
}
