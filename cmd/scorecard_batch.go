package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/contentmix/internal/config"
	"github.com/sells-group/contentmix/internal/cost"
	"github.com/sells-group/contentmix/internal/flow"
	"github.com/sells-group/contentmix/internal/model"
	"github.com/sells-group/contentmix/internal/prompt"
	"github.com/sells-group/contentmix/pkg/anthropic"
)

// batchScore is one line of scorecard-batch output.
type batchScore struct {
	Media     string           `json:"media"`
	Scorecard *model.Scorecard `json:"scorecard,omitempty"`
	Error     string           `json:"error,omitempty"`
	Kind      string           `json:"kind,omitempty"`
}

// scoreBatch carries what runScorecardBatch needs besides the inputs.
type scoreBatch struct {
	client     anthropic.Client
	inferencer *flow.AnthropicInferencer
	executor   *flow.Executor
	calc       *cost.Calculator
	model      string
	maxSize    int
	pollOpts   []anthropic.PollOption
}

var scorecardBatchCmd = &cobra.Command{
	Use:   "scorecard-batch <file|gs://ref>...",
	Short: "Score many creatives through the Message Batches API",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, config.ModeAnalyze)
		if err != nil {
			return err
		}
		defer env.Close()

		batchModel := cfg.Anthropic.BatchModel
		if batchModel == "" {
			batchModel = cfg.Anthropic.Model
		}
		results, err := scoreBatch{
			client:     env.Client,
			inferencer: env.Inferencer,
			executor:   env.Executor,
			calc:       env.Calc,
			model:      batchModel,
			maxSize:    cfg.Anthropic.MaxBatchSize,
			pollOpts: []anthropic.PollOption{anthropic.WithProgress(func(c anthropic.RequestCounts) {
				zap.L().Info("scorecard batch progress",
					zap.Int64("processing", c.Processing), zap.Int64("succeeded", c.Succeeded), zap.Int64("errored", c.Errored))
			})},
		}.run(ctx, args)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), results)
	},
}

// run submits one scorecard request per input in batches of maxSize and
// validates every reply the same way the synchronous flow does. Results
// keep input order.
func (b scoreBatch) run(ctx context.Context, inputs []string) ([]batchScore, error) {
	size := b.maxSize
	if size <= 0 {
		size = 100
	}

	results := make([]batchScore, len(inputs))
	for start := 0; start < len(inputs); start += size {
		end := min(start+size, len(inputs))
		if err := b.runChunk(ctx, inputs[start:end], results[start:end]); err != nil {
			return nil, err
		}
	}
	return results, nil
}

func (b scoreBatch) runChunk(ctx context.Context, inputs []string, out []batchScore) error {
	var items []anthropic.BatchRequestItem
	pending := make(map[string]int, len(inputs))
	for i, in := range inputs {
		out[i].Media = in
		f, ref, err := loadMedia(in)
		if err != nil {
			out[i].Error, out[i].Kind = err.Error(), string(flow.KindInput)
			continue
		}
		req, err := flow.ScorecardRequest(prompt.MediaInput{Media: flowMediaRef(f, ref)})
		if err != nil {
			out[i].Error, out[i].Kind = err.Error(), string(flow.KindInput)
			continue
		}
		params := b.inferencer.MessageRequest(req)
		params.Model = b.model
		id := fmt.Sprintf("scorecard-%04d", len(items))
		items = append(items, anthropic.BatchRequestItem{CustomID: id, Params: params})
		pending[id] = i
	}
	if len(items) == 0 {
		return nil
	}

	// Every item shares the scorecard system prompt.
	if len(items) > 1 {
		if _, err := anthropic.WarmCache(ctx, b.client, items[0].Params); err != nil {
			zap.L().Warn("scorecard batch: cache warm failed", zap.Error(err))
		}
	}

	batch, err := b.client.CreateBatch(ctx, anthropic.BatchRequest{Requests: items})
	if err != nil {
		return eris.Wrap(err, "scorecard batch: create")
	}
	zap.L().Info("scorecard batch submitted", zap.String("batch_id", batch.ID), zap.Int("requests", len(items)))

	if _, err := anthropic.PollBatch(ctx, b.client, batch.ID, b.pollOpts...); err != nil {
		return err
	}
	iter, err := b.client.GetBatchResults(ctx, batch.ID)
	if err != nil {
		return eris.Wrap(err, "scorecard batch: results")
	}
	collected, err := anthropic.CollectBatchResults(iter)
	if err != nil {
		return err
	}

	for id, i := range pending {
		msg, ok := collected.Succeeded[id]
		if !ok {
			out[i].Error, out[i].Kind = "batch request did not succeed", string(flow.KindCollaborator)
			continue
		}
		usage := flow.TokenUsage(msg.Usage)
		usage.Cost = b.calc.Claude(b.model, true, cost.Usage{
			Input:      usage.InputTokens,
			Output:     usage.OutputTokens,
			CacheWrite: usage.CacheCreationTokens,
			CacheRead:  usage.CacheReadTokens,
		})
		sc, err := b.executor.ScorecardResult(ctx, msg.Text(), usage).Result()
		if err != nil {
			var fe *flow.FlowError
			out[i].Error = err.Error()
			if errors.As(err, &fe) {
				out[i].Error, out[i].Kind = fe.Cause.Error(), string(fe.Kind)
			}
			continue
		}
		out[i].Scorecard = sc
	}
	return nil
}

func init() {
	rootCmd.AddCommand(scorecardBatchCmd)
}
