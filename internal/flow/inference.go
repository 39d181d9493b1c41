package flow

import (
	"context"
	"errors"
	"net/http"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/contentmix/internal/config"
	"github.com/sells-group/contentmix/internal/cost"
	"github.com/sells-group/contentmix/internal/model"
	"github.com/sells-group/contentmix/internal/resilience"
	"github.com/sells-group/contentmix/pkg/anthropic"
)

// Request is one inference call.
type Request struct {
	Flow        Name
	System      string
	Instruction string
	Images      []anthropic.Image
}

// Response is the raw reply to a Request.
type Response struct {
	Text  string
	Model string
	Usage model.TokenUsage
}

// Inferencer is the generative-inference collaborator.
type Inferencer interface {
	Infer(ctx context.Context, req Request) (*Response, error)
}

// AnthropicInferencer sends requests to the Messages API, paced by an
// adaptive limiter and guarded by a circuit breaker.
type AnthropicInferencer struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	timeout   time.Duration
	limiter   *AdaptiveLimiter
	breaker   *resilience.CircuitBreaker
	calc      *cost.Calculator
}

// NewAnthropicInferencer wires an inferencer from config. A nil breaker
// disables circuit breaking.
func NewAnthropicInferencer(client anthropic.Client, cfg config.AnthropicConfig, breaker *resilience.CircuitBreaker, calc *cost.Calculator) *AnthropicInferencer {
	if calc == nil {
		calc = cost.NewCalculator(cost.DefaultRates())
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 2
	}
	return &AnthropicInferencer{
		client:    client,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		timeout:   time.Duration(cfg.TimeoutSecs) * time.Second,
		limiter:   NewAdaptiveLimiter(rps, cfg.Burst),
		breaker:   breaker,
		calc:      calc,
	}
}

// Model returns the model requests are sent to.
func (a *AnthropicInferencer) Model() string { return a.model }

// MessageRequest converts req to an API request. The system prompt carries
// a cache breakpoint since it is identical across calls of a flow.
func (a *AnthropicInferencer) MessageRequest(req Request) anthropic.MessageRequest {
	out := anthropic.MessageRequest{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		Messages: []anthropic.Message{{
			Role:    "user",
			Content: req.Instruction,
			Images:  req.Images,
		}},
	}
	if req.System != "" {
		out.System = anthropic.CachedSystem(req.System, "")
	}
	return out
}

// Infer implements Inferencer.
func (a *AnthropicInferencer) Infer(ctx context.Context, req Request) (*Response, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "flow: rate limiter")
	}
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	call := func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return a.client.CreateMessage(ctx, a.MessageRequest(req))
	}
	var resp *anthropic.MessageResponse
	var err error
	if a.breaker != nil {
		resp, err = resilience.ExecuteVal(ctx, a.breaker, call)
	} else {
		resp, err = call(ctx)
	}
	if err != nil {
		if isRateLimited(err) {
			a.limiter.OnRateLimit()
		}
		return nil, eris.Wrapf(err, "flow: %s inference", req.Flow)
	}
	a.limiter.OnSuccess()

	modelName := resp.Model
	if modelName == "" {
		modelName = a.model
	}
	usage := TokenUsage(resp.Usage)
	usage.Cost = a.calc.Claude(modelName, false, cost.Usage{
		Input:      usage.InputTokens,
		Output:     usage.OutputTokens,
		CacheWrite: usage.CacheCreationTokens,
		CacheRead:  usage.CacheReadTokens,
	})

	zap.L().Info("cost attribution",
		zap.String("flow", string(req.Flow)),
		zap.String("model", modelName),
		zap.Int("input_tokens", usage.InputTokens),
		zap.Int("output_tokens", usage.OutputTokens),
		zap.Int("cache_write_tokens", usage.CacheCreationTokens),
		zap.Int("cache_read_tokens", usage.CacheReadTokens),
		zap.Float64("cost_usd", usage.Cost),
	)

	return &Response{Text: resp.Text(), Model: modelName, Usage: usage}, nil
}

// TokenUsage converts API token counts to the model representation.
func TokenUsage(u anthropic.TokenUsage) model.TokenUsage {
	return model.TokenUsage{
		InputTokens:         int(u.InputTokens),
		OutputTokens:        int(u.OutputTokens),
		CacheCreationTokens: int(u.CacheCreationInputTokens),
		CacheReadTokens:     int(u.CacheReadInputTokens),
	}
}

func isRateLimited(err error) bool {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode == 529
	}
	return false
}
