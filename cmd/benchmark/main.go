// Command benchmark load-tests a model endpoint: either an
// OpenAI-compatible server (such as Ollama's /v1 endpoint) directly, or the
// AssistGen relay end-to-end through its event-stream protocol.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/sashabaranov/go-openai"

	"assistgen-backend/internal/models"
	"assistgen-backend/internal/stream"
)

var questions = []string{
	"Why is the sky blue?",
	"What is a decorator in Python?",
	"Explain the Fourier transform.",
	"What is a neural network?",
	"What is consciousness?",
	"How does garbage collection work in Go?",
	"Explain what recursion is.",
	"What is reinforcement learning?",
}

type result struct {
	firstByte time.Duration
	total     time.Duration
	chars     int
	err       error
}

func main() {
	var (
		mode        = flag.String("mode", "direct", "direct (OpenAI-compatible endpoint) or relay (AssistGen backend)")
		baseURL     = flag.String("url", "http://localhost:11434/v1", "endpoint base URL")
		model       = flag.String("model", "deepseek-r1:14b", "model name (direct mode)")
		token       = flag.String("token", "", "bearer token (relay mode)")
		concurrency = flag.Int("concurrency", 4, "number of parallel workers")
		requests    = flag.Int("requests", 20, "total number of requests")
	)
	flag.Parse()

	jobs := make(chan string)
	results := make(chan result, *requests)

	var wg sync.WaitGroup
	for i := 0; i < *concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for prompt := range jobs {
				switch *mode {
				case "direct":
					results <- directRequest(*baseURL, *model, prompt)
				case "relay":
					results <- relayRequest(*baseURL, *token, prompt)
				default:
					log.Fatalf("unknown mode %q", *mode)
				}
			}
		}()
	}

	start := time.Now()
	go func() {
		for i := 0; i < *requests; i++ {
			jobs <- questions[rand.Intn(len(questions))]
		}
		close(jobs)
	}()

	collected := make([]result, 0, *requests)
	for i := 0; i < *requests; i++ {
		r := <-results
		if r.err != nil {
			fmt.Fprintf(os.Stderr, "request failed: %v\n", r.err)
		} else {
			fmt.Printf("request ok: first_byte=%s total=%s chars=%d\n", r.firstByte, r.total, r.chars)
		}
		collected = append(collected, r)
	}
	wg.Wait()

	report(collected, time.Since(start), *concurrency)
}

// directRequest streams one completion from an OpenAI-compatible endpoint,
// the way the local Ollama server exposes one at /v1.
func directRequest(baseURL, model, prompt string) result {
	cfg := openai.DefaultConfig("ollama")
	cfg.BaseURL = baseURL
	client := openai.NewClientWithConfig(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	start := time.Now()
	s, err := client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Stream: true,
	})
	if err != nil {
		return result{err: err}
	}
	defer s.Close()

	var firstByte time.Duration
	chars := 0
	for {
		resp, err := s.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return result{err: err}
		}
		if len(resp.Choices) == 0 {
			continue
		}
		delta := resp.Choices[0].Delta
		if firstByte == 0 && (delta.Content != "" || delta.ReasoningContent != "") {
			firstByte = time.Since(start)
		}
		chars += len(delta.Content) + len(delta.ReasoningContent)
	}
	return result{firstByte: firstByte, total: time.Since(start), chars: chars}
}

// relayRequest exercises the backend end-to-end: it posts a conversation to
// /api/chat and consumes the relayed event stream.
func relayRequest(baseURL, token, prompt string) result {
	body, _ := json.Marshal(models.ChatRequest{
		Messages: []models.ChatMessage{{Role: models.RoleUser, Content: prompt}},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return result{err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return result{err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return result{err: fmt.Errorf("backend returned HTTP %d", resp.StatusCode)}
	}

	var firstByte time.Duration
	consumer := stream.NewConsumer(func(ev stream.Event) error {
		if firstByte == 0 {
			firstByte = time.Since(start)
		}
		return nil
	})
	if err := consumer.Run(ctx, resp.Body); err != nil {
		return result{err: err}
	}

	return result{
		firstByte: firstByte,
		total:     time.Since(start),
		chars:     len(consumer.Think()) + len(consumer.Response()),
	}
}

func report(results []result, elapsed time.Duration, concurrency int) {
	ok := make([]result, 0, len(results))
	failed := 0
	totalChars := 0
	for _, r := range results {
		if r.err != nil {
			failed++
			continue
		}
		ok = append(ok, r)
		totalChars += r.chars
	}

	fmt.Println()
	fmt.Printf("requests:    %d ok, %d failed (concurrency %d)\n", len(ok), failed, concurrency)
	fmt.Printf("wall time:   %s\n", elapsed.Round(time.Millisecond))
	if len(ok) == 0 {
		return
	}

	sort.Slice(ok, func(i, j int) bool { return ok[i].total < ok[j].total })
	fmt.Printf("latency:     p50=%s p95=%s\n",
		ok[len(ok)/2].total.Round(time.Millisecond),
		ok[len(ok)*95/100].total.Round(time.Millisecond))
	fmt.Printf("throughput:  %.1f chars/sec\n", float64(totalChars)/elapsed.Seconds())
}
