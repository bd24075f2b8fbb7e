// Package llm wraps an OpenAI-compatible chat API. The server uses it
// for one thing: condensing the pending student questions into a short
// summary an instructor can act on mid-lecture.
package llm

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// Client wraps an OpenAI-compatible API client.
type Client struct {
	api   *openai.Client
	model string
}

// New creates a new LLM client. An empty baseURL targets the default
// OpenAI endpoint.
func New(baseURL, apiKey, modelName string) *Client {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &Client{
		api:   openai.NewClientWithConfig(config),
		model: modelName,
	}
}

// Ping verifies the endpoint is reachable before the server starts
// accepting escalation requests.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.api.ListModels(ctx); err != nil {
		return fmt.Errorf("LLM endpoint unreachable: %w", err)
	}
	return nil
}

const summarySystemPrompt = `You are assisting an instructor during a live lecture. ` +
	`Students have submitted the questions below. Condense them into a summary of ` +
	`at most three sentences that groups recurring themes and names the most common ` +
	`point of confusion first. Do not address the students, do not answer the ` +
	`questions, and do not add commentary. Respond with the summary text only.`

// SummarizeQuestions condenses the given student questions into a short
// thematic summary.
func (c *Client) SummarizeQuestions(ctx context.Context, questions []string) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: summarySystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildQuestionList(questions)},
		},
		Temperature: 0.3,
	})
	if err != nil {
		return "", fmt.Errorf("LLM API call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("LLM returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func buildQuestionList(questions []string) string {
	var sb strings.Builder
	sb.WriteString("STUDENT QUESTIONS:\n")
	for i, q := range questions {
		sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, q))
	}
	return sb.String()
}
