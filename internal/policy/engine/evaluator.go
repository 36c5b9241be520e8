package engine

import "context"

// RedirectEvaluator decides whether an OAuth redirect target may be passed to the identity provider.
type RedirectEvaluator interface {
	// AllowRedirect reports whether redirectTo is permitted. An empty redirectTo is always permitted.
	AllowRedirect(ctx context.Context, redirectTo string) (bool, error)
}
