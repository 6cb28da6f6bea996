package api

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Section drafts can produce long SSE lines; the default 64KB token limit is too small
const maxStreamLineSize = 1024 * 1024

// readStream assembles an SSE chat completion stream into a single response
func (c *Client) readStream(body io.Reader) (*ChatCompletionResponse, error) {
	var responseContent strings.Builder
	var reasoningContent strings.Builder
	var responseID string
	var responseModel string
	var responseCreated int64
	var finishReason string

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxStreamLineSize)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// SSE format: "data: {...}"; comments and blank keep-alives are skipped
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))

		// Check for end marker
		if data == "[DONE]" {
			break
		}

		var chunk StreamResponse
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			c.logger.Warn("Failed to parse stream chunk", "error", err, "data", data)
			continue
		}

		// Store metadata from first chunk
		if responseID == "" {
			responseID = chunk.ID
			responseModel = chunk.Model
			responseCreated = chunk.Created
		}

		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta
		responseContent.WriteString(delta.Content)
		reasoningContent.WriteString(delta.ReasoningContent)

		if fr := chunk.Choices[0].FinishReason; fr != nil && *fr != "" {
			finishReason = *fr
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("stream reading error: %w", err)
	}

	if reasoningContent.Len() > 0 {
		c.logger.Debug("Reasoning content detected",
			"model", responseModel,
			"reasoning_length", reasoningContent.Len(),
			"content_length", responseContent.Len())
	}

	// Token counts are not reported in streaming mode
	return &ChatCompletionResponse{
		ID:      responseID,
		Object:  "chat.completion",
		Created: responseCreated,
		Model:   responseModel,
		Choices: []Choice{
			{
				Message: Message{
					Role:             RoleAssistant,
					Content:          responseContent.String(),
					ReasoningContent: reasoningContent.String(),
				},
				FinishReason: finishReason,
			},
		},
	}, nil
}
