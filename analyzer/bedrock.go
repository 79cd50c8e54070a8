package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

// BedrockClassifier implements Classifier using AWS Bedrock.
type BedrockClassifier struct {
	client    *bedrockruntime.Client
	modelID   string
	maxTokens int
}

// NewBedrockClassifier creates a Bedrock-backed classifier.
func NewBedrockClassifier(region, modelID string, maxTokens int) (*BedrockClassifier, error) {
	cfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &BedrockClassifier{
		client:    bedrockruntime.NewFromConfig(cfg),
		modelID:   modelID,
		maxTokens: maxTokens,
	}, nil
}

func (c *BedrockClassifier) requestPayload(html string) ([]byte, error) {
	requestBody := map[string]interface{}{
		"anthropic_version": "bedrock-2023-05-31",
		"max_tokens":        c.maxTokens,
		"messages": []map[string]interface{}{
			{
				"role": "user",
				"content": []map[string]interface{}{
					{
						"type": "text",
						"text": BuildPrompt(html),
					},
				},
			},
		},
	}
	payload, err := json.Marshal(requestBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	return payload, nil
}

// Classify runs a single-shot model invocation.
func (c *BedrockClassifier) Classify(ctx context.Context, html string) (*FormAnalysis, error) {
	payload, err := c.requestPayload(html)
	if err != nil {
		return nil, err
	}

	output, err := c.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(c.modelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        payload,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to invoke Bedrock model: %w", err)
	}

	var response struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(output.Body, &response); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if len(response.Content) == 0 {
		return nil, fmt.Errorf("no content in response")
	}

	return parseAnalysis(response.Content[0].Text)
}

// ClassifyStream streams the model response, surfacing each text delta
// through onToken before parsing the assembled document.
func (c *BedrockClassifier) ClassifyStream(ctx context.Context, html string, onToken func(token string)) (*FormAnalysis, error) {
	payload, err := c.requestPayload(html)
	if err != nil {
		return nil, err
	}

	output, err := c.client.InvokeModelWithResponseStream(ctx, &bedrockruntime.InvokeModelWithResponseStreamInput{
		ModelId:     aws.String(c.modelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        payload,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to invoke Bedrock model stream: %w", err)
	}

	stream := output.GetStream()
	defer stream.Close()

	var full strings.Builder
	for event := range stream.Events() {
		chunk, ok := event.(*types.ResponseStreamMemberChunk)
		if !ok {
			continue
		}

		var delta struct {
			Type  string `json:"type"`
			Delta struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"delta"`
		}
		if err := json.Unmarshal(chunk.Value.Bytes, &delta); err != nil {
			continue
		}
		if delta.Type == "content_block_delta" && delta.Delta.Text != "" {
			full.WriteString(delta.Delta.Text)
			if onToken != nil {
				onToken(delta.Delta.Text)
			}
		}
	}
	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("model stream failed: %w", err)
	}

	return parseAnalysis(full.String())
}
