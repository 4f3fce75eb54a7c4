package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"assistgen-backend/internal/models"
)

// SearchService answers a query with live web results: it derives a search
// query via a forced tool call, looks it up on SerpAPI, emits one
// search_results frame and then streams an answer grounded in the results.
// Its output uses the same `data:` frame protocol as the model providers.
type SearchService struct {
	client      *openai.Client
	model       string
	serpAPIKey  string
	resultCount int
	httpClient  *http.Client
}

func NewSearchService(apiKey, baseURL, model, serpAPIKey string, resultCount int) *SearchService {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &SearchService{
		client:      openai.NewClientWithConfig(cfg),
		model:       model,
		serpAPIKey:  serpAPIKey,
		resultCount: resultCount,
		httpClient:  &http.Client{Timeout: 15 * time.Second},
	}
}

type searchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

type searchResultsFrame struct {
	Type    string         `json:"type"`
	Total   int            `json:"total"`
	Query   string         `json:"query"`
	Results []searchResult `json:"results"`
}

func (s *SearchService) Name() string { return "search" }

// Stream implements the provider contract. The first user message is the
// query to ground.
func (s *SearchService) Stream(ctx context.Context, messages []models.ChatMessage) (io.ReadCloser, error) {
	if len(messages) == 0 {
		return nil, fmt.Errorf("search request has no messages")
	}
	query := messages[0].Content

	pr, pw := io.Pipe()
	go s.run(ctx, query, pw)
	return pr, nil
}

func (s *SearchService) run(ctx context.Context, query string, pw *io.PipeWriter) {
	prompt := query

	searchQuery := s.deriveQuery(ctx, query)
	results, err := s.search(ctx, searchQuery)
	if err == nil && len(results) > 0 {
		frame := searchResultsFrame{
			Type:    "search_results",
			Total:   len(results),
			Query:   searchQuery,
			Results: results,
		}
		// Marshaled JSON never contains raw newlines, so it fits one frame.
		b, merr := json.Marshal(frame)
		if merr == nil {
			if _, werr := fmt.Fprintf(pw, "data: %s\n\n", b); werr != nil {
				return
			}
		}
		prompt = buildContextPrompt(query, results)
	}

	stream, err := s.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleSystem,
				Content: "You are an AI assistant with web search access. " +
					"Answer fully and accurately based on the search results, " +
					"cite concrete sources, and note how current the information is. " +
					"If the results are irrelevant, say so and answer from what you know.",
			},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Stream: true,
	})
	if err != nil {
		pw.CloseWithError(err)
		return
	}
	defer stream.Close()

	for {
		resp, err := stream.Recv()
		if err != nil {
			if err == io.EOF {
				io.WriteString(pw, "data: [DONE]\n\n")
				pw.Close()
			} else {
				pw.CloseWithError(err)
			}
			return
		}
		if len(resp.Choices) == 0 {
			continue
		}
		if content := resp.Choices[0].Delta.Content; content != "" {
			for _, line := range strings.Split(content, "\n") {
				if line == "" {
					continue
				}
				if _, err := fmt.Fprintf(pw, "data: %s\n\n", line); err != nil {
					return
				}
			}
		}
	}
}

// deriveQuery forces a search tool call to distill the user's question into
// a search query. Falls back to the raw question when the model does not
// cooperate.
func (s *SearchService) deriveQuery(ctx context.Context, query string) string {
	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You must call the search function to gather information. Do not answer directly.",
			},
			{Role: openai.ChatMessageRoleUser, Content: query},
		},
		Tools: []openai.Tool{{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        "search",
				Description: "Search the internet for up-to-date information.",
				Parameters: map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"query": map[string]interface{}{
							"type":        "string",
							"description": "The search query",
						},
					},
					"required": []string{"query"},
				},
			},
		}},
		ToolChoice: openai.ToolChoice{
			Type:     openai.ToolTypeFunction,
			Function: openai.ToolFunction{Name: "search"},
		},
	})
	if err != nil || len(resp.Choices) == 0 {
		return query
	}

	for _, call := range resp.Choices[0].Message.ToolCalls {
		if call.Function.Name != "search" {
			continue
		}
		var args struct {
			Query string `json:"query"`
		}
		if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err == nil && args.Query != "" {
			return args.Query
		}
	}
	return query
}

func (s *SearchService) search(ctx context.Context, query string) ([]searchResult, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("api_key", s.serpAPIKey)
	params.Set("num", strconv.Itoa(s.resultCount))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://serpapi.com/search.json?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("serpapi returned HTTP %d", resp.StatusCode)
	}

	var body struct {
		OrganicResults []struct {
			Title   string `json:"title"`
			Link    string `json:"link"`
			Snippet string `json:"snippet"`
		} `json:"organic_results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}

	results := make([]searchResult, 0, s.resultCount)
	for _, r := range body.OrganicResults {
		results = append(results, searchResult{Title: r.Title, URL: r.Link, Snippet: r.Snippet})
		if len(results) >= s.resultCount {
			break
		}
	}
	return results, nil
}

func buildContextPrompt(query string, results []searchResult) string {
	var context []string
	for _, r := range results {
		context = append(context, fmt.Sprintf("Source: %s\nLink: %s\nContent: %s\n", r.Title, r.URL, r.Snippet))
	}

	return "Answer the user's question based on the search results below.\n\n" +
		"Search results:\n\n" + strings.Join(context, "\n---\n") +
		"\n\nUser question: " + query +
		"\n\nRequirements:\n" +
		"1. Give a complete, accurate answer\n" +
		"2. Cite concrete sources and links\n" +
		"3. Note how current the information is\n" +
		"4. If the results are insufficient, say what is missing"
}
