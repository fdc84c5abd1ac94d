package main

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/tmc/langchaingo/llms"
)

// scriptedLLM feeds fixed chunks through the streaming callback.
type scriptedLLM struct {
	chunks []string
}

func (s *scriptedLLM) GenerateContent(ctx context.Context, _ []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	opts := llms.CallOptions{}
	for _, o := range options {
		o(&opts)
	}
	for _, c := range s.chunks {
		if opts.StreamingFunc != nil {
			if err := opts.StreamingFunc(ctx, []byte(c)); err != nil {
				return nil, err
			}
		}
	}
	full := strings.Join(s.chunks, "")
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: full}}}, nil
}

func (s *scriptedLLM) Call(ctx context.Context, _ string, _ ...llms.CallOption) (string, error) {
	return strings.Join(s.chunks, ""), nil
}

func TestNarrateAssemblesStreamedChunks(t *testing.T) {
	n := &llmNarrator{
		llm:          &scriptedLLM{chunks: []string{"The night ", "was ", "merciless. "}},
		systemPrompt: narratorSystemPrompt,
	}

	var streamed []string
	text, err := n.Narrate(context.Background(), []string{"day 1: seat 3 (villager) died: werewolf"}, func(chunk string) {
		streamed = append(streamed, chunk)
	})
	if err != nil {
		t.Fatalf("Narrate: %v", err)
	}
	if text != "The night was merciless." {
		t.Errorf("unexpected final text: %q", text)
	}
	if len(streamed) != 3 {
		t.Errorf("expected 3 streamed chunks, got %v", streamed)
	}
}

func TestInitNarratorDisabledByDefault(t *testing.T) {
	if n := initNarrator(AppConfig{}); n != nil {
		t.Error("no provider means no narrator")
	}
	// openai-compatible without a base URL cannot be constructed
	if n := initNarrator(AppConfig{NarratorProvider: "openai-compatible", NarratorModel: "m"}); n != nil {
		t.Error("openai-compatible requires narrator_url")
	}
}

func TestStreamNarrationPublishesFinalText(t *testing.T) {
	bus := &recordingBroadcaster{}
	streamNarration(context.Background(), &stubNarrator{text: "The village mourns."}, bus, "r1", []string{"day 1: seat 3 died"})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		bus.mu.Lock()
		for _, e := range bus.events {
			if e.Event != "narration" {
				continue
			}
			payload, ok := e.Payload.(map[string]any)
			if ok && payload["partial"] == false {
				if payload["text"] != "The village mourns." {
					t.Errorf("unexpected final narration: %v", payload)
				}
				bus.mu.Unlock()
				return
			}
		}
		bus.mu.Unlock()
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("no final narration was published")
}
