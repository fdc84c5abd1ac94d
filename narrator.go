package main

import (
	"context"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

const narratorSystemPrompt = `You are the narrator for a werewolf social deduction game run by a human judge. After each death announcement you deliver a short atmospheric account of the night's events. Keep it to 2-3 sentences. Be gothic and dramatic, fitting for a village plagued by werewolves. Never reveal any role or camp that the public record does not already reveal.`

// Narrator generates flavor text for death announcements. onChunk is called
// with each text chunk as it streams in.
type Narrator interface {
	Narrate(ctx context.Context, history []string, onChunk func(string)) (string, error)
}

type llmNarrator struct {
	llm          llms.Model
	systemPrompt string
	callOpts     []llms.CallOption
}

func (n *llmNarrator) Narrate(ctx context.Context, history []string, onChunk func(string)) (string, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, n.systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman,
			"Public game record so far:\n"+strings.Join(history, "\n")+
				"\n\nNarrate the latest deaths for the village (2-3 sentences)."),
	}

	var fullText strings.Builder
	opts := append(n.callOpts, llms.WithStreamingFunc(func(_ context.Context, chunk []byte) error {
		text := string(chunk)
		fullText.WriteString(text)
		if onChunk != nil {
			onChunk(text)
		}
		return nil
	}))

	_, err := n.llm.GenerateContent(ctx, messages, opts...)
	return strings.TrimSpace(fullText.String()), err
}

// buildCallOpts builds LLM call options from the config.
func buildCallOpts(cfg AppConfig) []llms.CallOption {
	var opts []llms.CallOption

	if cfg.NarratorTemperature != "" {
		if f, err := strconv.ParseFloat(cfg.NarratorTemperature, 64); err == nil {
			opts = append(opts, llms.WithTemperature(f))
			log.Printf("Narrator: temperature=%.2f", f)
		} else {
			log.Printf("Narrator: invalid temperature %q: %v", cfg.NarratorTemperature, err)
		}
	}

	return opts
}

// initNarrator builds a narrator from config, or nil when no provider is
// configured (feature disabled).
func initNarrator(cfg AppConfig) Narrator {
	provider := cfg.NarratorProvider
	model := cfg.NarratorModel
	callOpts := buildCallOpts(cfg)

	wrap := func(llm llms.Model) Narrator {
		return &llmNarrator{llm: llm, systemPrompt: narratorSystemPrompt, callOpts: callOpts}
	}

	switch provider {
	case "ollama":
		llm, err := ollama.New(ollama.WithModel(model), ollama.WithServerURL(cfg.NarratorOllamaURL))
		if err != nil {
			log.Printf("Narrator: failed to init Ollama (%s at %s): %v", model, cfg.NarratorOllamaURL, err)
			return nil
		}
		log.Printf("Narrator: Ollama model=%s url=%s", model, cfg.NarratorOllamaURL)
		return wrap(llm)
	case "openai":
		llm, err := openai.New(openai.WithModel(model))
		if err != nil {
			log.Printf("Narrator: failed to init OpenAI (%s): %v", model, err)
			return nil
		}
		log.Printf("Narrator: OpenAI model=%s", model)
		return wrap(llm)
	case "claude":
		llm, err := anthropic.New(anthropic.WithModel(model))
		if err != nil {
			log.Printf("Narrator: failed to init Claude (%s): %v", model, err)
			return nil
		}
		log.Printf("Narrator: Claude model=%s", model)
		return wrap(llm)
	case "gemini":
		llm, err := googleai.New(context.Background(), googleai.WithDefaultModel(model))
		if err != nil {
			log.Printf("Narrator: failed to init Gemini (%s): %v", model, err)
			return nil
		}
		log.Printf("Narrator: Gemini model=%s", model)
		return wrap(llm)
	case "openai-compatible":
		if cfg.NarratorURL == "" {
			log.Printf("Narrator: narrator_url is required for openai-compatible provider")
			return nil
		}
		opts := []openai.Option{
			openai.WithModel(model),
			openai.WithBaseURL(cfg.NarratorURL),
		}
		if cfg.NarratorAPIKey != "" {
			opts = append(opts, openai.WithToken(cfg.NarratorAPIKey))
		}
		llm, err := openai.New(opts...)
		if err != nil {
			log.Printf("Narrator: failed to init openai-compatible (%s at %s): %v", model, cfg.NarratorURL, err)
			return nil
		}
		log.Printf("Narrator: openai-compatible model=%s url=%s", model, cfg.NarratorURL)
		return wrap(llm)
	default:
		log.Printf("Narrator: disabled (set narrator_provider to enable)")
		return nil
	}
}

// streamNarration asynchronously streams flavor text to the room over the
// hub. Returns immediately; partial text goes out every 300ms, the final
// trimmed text once the model finishes.
func streamNarration(_ context.Context, n Narrator, hub Broadcaster, roomID string, history []string) {
	go func() {
		var mu sync.Mutex
		var buf strings.Builder

		done := make(chan struct{})
		go func() {
			ticker := time.NewTicker(300 * time.Millisecond)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					mu.Lock()
					text := buf.String()
					mu.Unlock()
					if text != "" {
						hub.Publish(roomID, "narration", map[string]any{"text": strings.TrimSpace(text), "partial": true})
					}
				case <-done:
					return
				}
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		final, err := n.Narrate(ctx, history, func(chunk string) {
			mu.Lock()
			buf.WriteString(chunk)
			mu.Unlock()
		})
		close(done)

		if err != nil {
			log.Printf("Narrator: room %s: %v", roomID, err)
			return
		}
		if final != "" {
			hub.Publish(roomID, "narration", map[string]any{"text": final, "partial": false})
		}
	}()
}
