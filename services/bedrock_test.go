package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

func TestClaudeRequest_Serialization(t *testing.T) {
	req := ClaudeRequest{
		AnthropicVersion: "bedrock-2023-05-31",
		MaxTokens:        1024,
		System:           "You are a market commentator.",
		Messages: []ClaudeMessage{
			{Role: "user", Content: "Summarize AAPL"},
		},
	}

	data, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("Failed to marshal ClaudeRequest: %v", err)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Failed to unmarshal to map: %v", err)
	}
	for _, field := range []string{"anthropic_version", "max_tokens", "system", "messages"} {
		if _, ok := raw[field]; !ok {
			t.Errorf("JSON should have %q field", field)
		}
	}
}

func TestClaudeRequest_EmptySystem(t *testing.T) {
	req := ClaudeRequest{
		AnthropicVersion: "bedrock-2023-05-31",
		MaxTokens:        1024,
		Messages:         []ClaudeMessage{{Role: "user", Content: "Test"}},
	}

	data, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("Failed to marshal: %v", err)
	}
	if strings.Contains(string(data), `"system"`) {
		t.Error("Empty system field should be omitted from JSON")
	}
}

// mockBedrockClient implements bedrockClient for testing
type mockBedrockClient struct {
	invokeFunc func(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

func (m *mockBedrockClient) InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
	return m.invokeFunc(ctx, params, optFns...)
}

func newTestBedrockService(client bedrockClient) *BedrockService {
	return &BedrockService{
		client:           client,
		model:            "test-model",
		maxTokens:        512,
		anthropicVersion: "bedrock-2023-05-31",
	}
}

func respondWith(body string) *mockBedrockClient {
	return &mockBedrockClient{
		invokeFunc: func(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
			return &bedrockruntime.InvokeModelOutput{Body: []byte(body)}, nil
		},
	}
}

func TestInvokeWithPrompt_Success(t *testing.T) {
	SetBreakerRegistry(NewCircuitBreakerRegistry(DefaultCircuitBreakerConfig))

	var sent ClaudeRequest
	mockClient := &mockBedrockClient{
		invokeFunc: func(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
			if *params.ModelId != "test-model" {
				t.Errorf("ModelId = %s", *params.ModelId)
			}
			if err := json.Unmarshal(params.Body, &sent); err != nil {
				t.Fatalf("request body is not JSON: %v", err)
			}
			return &bedrockruntime.InvokeModelOutput{
				Body: []byte(`{"id": "msg_123", "type": "message", "role": "assistant",
					"content": [{"type": "text", "text": "Shares look steady."}], "stop_reason": "end_turn"}`),
			}, nil
		},
	}

	service := newTestBedrockService(mockClient)
	result, err := service.InvokeWithPrompt(context.Background(), "You are helpful", "Describe AAPL")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "Shares look steady." {
		t.Errorf("unexpected result %q", result)
	}
	if sent.MaxTokens != 512 {
		t.Errorf("MaxTokens = %d, want 512", sent.MaxTokens)
	}
	if sent.System != "You are helpful" || len(sent.Messages) != 1 || sent.Messages[0].Role != "user" {
		t.Errorf("unexpected request %+v", sent)
	}
}

func TestInvokeWithPrompt_JoinsTextBlocks(t *testing.T) {
	SetBreakerRegistry(NewCircuitBreakerRegistry(DefaultCircuitBreakerConfig))

	service := newTestBedrockService(respondWith(`{"content": [
		{"type": "text", "text": "First. "},
		{"type": "tool_use", "text": "ignored"},
		{"type": "text", "text": "Second."}
	]}`))

	result, err := service.InvokeWithPrompt(context.Background(), "system", "user")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "First. Second." {
		t.Errorf("unexpected result %q", result)
	}
}

func TestInvokeWithPrompt_Errors(t *testing.T) {
	tests := []struct {
		name    string
		client  *mockBedrockClient
		wantMsg string
	}{
		{
			name: "api error",
			client: &mockBedrockClient{
				invokeFunc: func(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
					return nil, errors.New("API error")
				},
			},
			wantMsg: "failed to invoke model",
		},
		{"invalid json", respondWith(`{invalid json`), "failed to unmarshal response"},
		{"empty content", respondWith(`{"content": []}`), "empty response from model"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			SetBreakerRegistry(NewCircuitBreakerRegistry(DefaultCircuitBreakerConfig))

			service := newTestBedrockService(tt.client)
			_, err := service.InvokeWithPrompt(context.Background(), "system", "user")
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("unexpected error message: %v", err)
			}
		})
	}
}

func TestInvokeWithPrompt_BreakerOpens(t *testing.T) {
	SetBreakerRegistry(NewCircuitBreakerRegistry(DefaultCircuitBreakerConfig))

	calls := 0
	service := newTestBedrockService(&mockBedrockClient{
		invokeFunc: func(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
			calls++
			return nil, errors.New("throttled")
		},
	})

	for i := 0; i < 5; i++ {
		service.InvokeWithPrompt(context.Background(), "system", "user")
	}

	_, err := service.InvokeWithPrompt(context.Background(), "system", "user")
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Errorf("expected open breaker error, got %v", err)
	}
	if calls != 5 {
		t.Errorf("expected 5 upstream calls, got %d", calls)
	}
}

func TestChat_MultiTurn(t *testing.T) {
	SetBreakerRegistry(NewCircuitBreakerRegistry(DefaultCircuitBreakerConfig))

	var sent ClaudeRequest
	service := newTestBedrockService(&mockBedrockClient{
		invokeFunc: func(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
			json.Unmarshal(params.Body, &sent)
			return &bedrockruntime.InvokeModelOutput{
				Body: []byte(`{"content": [{"type": "text", "text": "ok"}]}`),
			}, nil
		},
	})

	messages := []ClaudeMessage{
		{Role: "user", Content: "Hello"},
		{Role: "assistant", Content: "Hi there!"},
		{Role: "user", Content: "How is the market?"},
	}
	if _, err := service.Chat(context.Background(), "system", messages); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sent.Messages) != 3 {
		t.Errorf("Messages length = %d, want 3", len(sent.Messages))
	}
}

func TestBedrockService_Name(t *testing.T) {
	if newTestBedrockService(nil).Name() != BreakerBedrock {
		t.Error("Name() should be the bedrock breaker name")
	}
}
