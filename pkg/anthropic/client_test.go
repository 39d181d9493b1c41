package anthropic

import (
	"testing"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageResponse_Text(t *testing.T) {
	resp := &MessageResponse{Content: []ContentBlock{
		{Type: "text", Text: `{"a":`},
		{Type: "tool_use"},
		{Type: "text", Text: `1}`},
	}}
	assert.Equal(t, `{"a":1}`, resp.Text())

	var nilResp *MessageResponse
	assert.Empty(t, nilResp.Text())
}

func TestToSDKMessages_Images(t *testing.T) {
	out := toSDKMessages([]Message{
		{Role: "user", Content: "Analyze this file.", Images: []Image{{MediaType: "image/png", Data: "aGVsbG8="}}},
		{Role: "assistant", Content: "{"},
	})
	require.Len(t, out, 2)

	assert.Equal(t, sdk.MessageParamRoleUser, out[0].Role)
	require.Len(t, out[0].Content, 2)
	require.NotNil(t, out[0].Content[0].OfImage)
	require.NotNil(t, out[0].Content[1].OfText)
	assert.Equal(t, "Analyze this file.", out[0].Content[1].OfText.Text)

	assert.Equal(t, sdk.MessageParamRoleAssistant, out[1].Role)
	require.Len(t, out[1].Content, 1)
	assert.Equal(t, "{", out[1].Content[0].OfText.Text)
}

func TestToSDKMessages_TextOnly(t *testing.T) {
	out := toSDKMessages([]Message{{Role: "user", Content: "hi"}})
	require.Len(t, out, 1)
	require.Len(t, out[0].Content, 1)
	assert.Equal(t, "hi", out[0].Content[0].OfText.Text)
}

func TestToSDKSystemBlocks(t *testing.T) {
	out := toSDKSystemBlocks([]SystemBlock{
		{Text: "plain"},
		{Text: "cached", CacheControl: &CacheControl{TTL: "1h"}},
	})
	require.Len(t, out, 2)
	assert.Equal(t, "plain", out[0].Text)
	assert.Equal(t, sdk.CacheControlEphemeralTTL("1h"), out[1].CacheControl.TTL)
}

func TestFromSDKMessage(t *testing.T) {
	resp := fromSDKMessage(&sdk.Message{
		ID:         "msg_1",
		Model:      "claude-sonnet-4-5-20250929",
		StopReason: "end_turn",
		Content: []sdk.ContentBlockUnion{
			{Type: "text", Text: "Hello"},
		},
		Usage: sdk.Usage{
			InputTokens:              100,
			OutputTokens:             50,
			CacheCreationInputTokens: 20,
			CacheReadInputTokens:     30,
		},
	})
	require.NotNil(t, resp)
	assert.Equal(t, "msg_1", resp.ID)
	assert.Equal(t, "end_turn", resp.StopReason)
	assert.Equal(t, "Hello", resp.Text())
	assert.Equal(t, TokenUsage{InputTokens: 100, OutputTokens: 50, CacheCreationInputTokens: 20, CacheReadInputTokens: 30}, resp.Usage)
}

func TestFromSDKBatch(t *testing.T) {
	resp := fromSDKBatch(&sdk.MessageBatch{
		ID:               "batch_1",
		ProcessingStatus: "ended",
		RequestCounts:    sdk.MessageBatchRequestCounts{Succeeded: 3, Errored: 1},
	})
	assert.Equal(t, "batch_1", resp.ID)
	assert.Equal(t, "ended", resp.ProcessingStatus)
	assert.Equal(t, int64(3), resp.RequestCounts.Succeeded)
	assert.Equal(t, int64(1), resp.RequestCounts.Errored)
}
