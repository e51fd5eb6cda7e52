package ocr

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// LLMScan reconstructs a clean rendering of a noisy embedded text layer
// using a chat model. It is an OCR post-correction vendor, not a primary
// reader: with no text layer at all it fails and the chain moves on.
type LLMScan struct {
	client *openai.Client
	model  string
}

const llmScanPrompt = `You are cleaning up text extracted from a credit report PDF. ` +
	`Reorder fragments into coherent labeled lines (e.g. "Name:", "Date of Birth:", ` +
	`"Current Balance:"), fix obvious OCR character errors, and drop page furniture. ` +
	`Copy every name, number, date and amount exactly as it appears. Never invent, ` +
	`guess or fill in values that are not present in the input. Output plain text only.`

func NewLLMScan(apiKey, model string) *LLMScan {
	if model == "" {
		model = openai.GPT4oMini
	}
	return &LLMScan{
		client: openai.NewClient(apiKey),
		model:  model,
	}
}

func (l *LLMScan) Name() string { return "llmscan" }

func (l *LLMScan) Extract(ctx context.Context, pdf []byte) (*Result, error) {
	raw, err := textLayer(pdf)
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(raw)) < 50 {
		return nil, fmt.Errorf("llmscan: no usable embedded text layer")
	}

	resp, err := l.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       l.model,
		Temperature: 0,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: llmScanPrompt},
			{Role: openai.ChatMessageRoleUser, Content: raw},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("llmscan completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("llmscan: empty completion")
	}

	text := resp.Choices[0].Message.Content
	return &Result{
		Text:       text,
		Confidence: heuristicConfidence(text),
	}, nil
}
