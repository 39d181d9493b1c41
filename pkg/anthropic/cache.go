package anthropic

import (
	"context"

	"github.com/rotisserie/eris"
)

// CachedSystem returns a single system block with a cache breakpoint. A
// blank ttl uses the API default of five minutes.
func CachedSystem(text, ttl string) []SystemBlock {
	return []SystemBlock{{Text: text, CacheControl: &CacheControl{TTL: ttl}}}
}

// WarmCache sends req once so that the batch requests sharing its system
// blocks read from a warm prompt cache. The response is discarded.
func WarmCache(ctx context.Context, client Client, req MessageRequest) (TokenUsage, error) {
	resp, err := client.CreateMessage(ctx, req)
	if err != nil {
		return TokenUsage{}, eris.Wrap(err, "anthropic: warm cache")
	}
	return resp.Usage, nil
}
