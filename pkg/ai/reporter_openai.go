package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"swinglab/pkg/domain"
)

const (
	maxDrills       = 6
	reportMaxTokens = 800
)

// OpenAICompatReporter calls any OpenAI-compatible /v1/chat/completions
// endpoint and asks for a JSON-shaped swing report. Works with OpenAI,
// vLLM, LiteLLM, OpenRouter, self-hosted models, etc.
type OpenAICompatReporter struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewOpenAICompatReporter builds an OpenAI-compatible ReportGenerator.
// baseURL should include the /v1 prefix, e.g. "https://api.openai.com/v1".
// apiKey can be empty for local models that do not require authentication.
func NewOpenAICompatReporter(baseURL, apiKey, model string) *OpenAICompatReporter {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	return &OpenAICompatReporter{
		baseURL: baseURL,
		apiKey:  strings.TrimSpace(apiKey),
		model:   strings.TrimSpace(model),
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

// GenerateReport implements ReportGenerator using the chat completions API.
// Every upstream failure mode (transport error, non-2xx status, malformed
// or empty body) surfaces as a plain error; callers do not distinguish.
func (g *OpenAICompatReporter) GenerateReport(ctx context.Context, videoURL string) (domain.Report, error) {
	if g.model == "" {
		return domain.Report{}, fmt.Errorf("report generation model required")
	}
	reqBody := oaiChatRequest{
		Model: g.model,
		Messages: []oaiMessage{
			{Role: "user", Content: buildReportPrompt(videoURL)},
		},
		ResponseFormat: &oaiResponseFormat{Type: "json_object"},
		MaxTokens:      reportMaxTokens,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return domain.Report{}, err
	}

	url := g.baseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return domain.Report{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return domain.Report{}, fmt.Errorf("report request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp oaiErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		if errResp.Error.Message != "" {
			return domain.Report{}, fmt.Errorf("report api error: %s", errResp.Error.Message)
		}
		return domain.Report{}, fmt.Errorf("report api error: %s", resp.Status)
	}

	var chatResp oaiChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return domain.Report{}, fmt.Errorf("report decode: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return domain.Report{}, fmt.Errorf("empty response from report api")
	}
	raw := strings.TrimSpace(chatResp.Choices[0].Message.Content)
	if raw == "" {
		return domain.Report{}, fmt.Errorf("empty response from report api")
	}

	var report domain.Report
	if err := json.Unmarshal([]byte(raw), &report); err != nil {
		return domain.Report{}, fmt.Errorf("report parse: %w", err)
	}
	if len(report.Drills) > maxDrills {
		report.Drills = report.Drills[:maxDrills]
	}
	return report, nil
}

func buildReportPrompt(videoURL string) string {
	return fmt.Sprintf(`You are an elite baseball hitting coach writing a personal swing report
for a single athlete. You are reviewing the swing from this video URL:

%s

Write the report as if you are talking directly to the hitter ("you"),
not to a coach. The tone should be positive, encouraging, and specific.

Please do ALL of the following:

1) Start with a short, friendly opener (1-2 sentences).

2) Describe 2-4 specific strengths of the swing.

3) Give a detailed breakdown (2-3 short paragraphs) of 2-4 main issues,
   tied to real checkpoints (stance, load, stride, separation, bat path,
   contact, finish), making clear why each issue matters.

4) End with a short encouragement paragraph naming the next-session focus.

5) Provide 3-6 specific drills as a list: a short drill name plus one
   sentence on how to do it and what it fixes.

Keep the main written feedback around 400-600 words and age-appropriate
for 11-18 year old players.

Return your answer as JSON with this exact shape:

{
  "feedback": "the full written swing report with paragraphs and line breaks",
  "drills": ["Drill 1 with explanation", "Drill 2 with explanation", "..."]
}`, videoURL)
}

// OpenAI-compatible request/response types.

type oaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type oaiResponseFormat struct {
	Type string `json:"type"`
}

type oaiChatRequest struct {
	Model          string             `json:"model"`
	Messages       []oaiMessage       `json:"messages"`
	ResponseFormat *oaiResponseFormat `json:"response_format,omitempty"`
	MaxTokens      int                `json:"max_tokens,omitempty"`
}

type oaiChatResponse struct {
	Choices []struct {
		Message oaiMessage `json:"message"`
	} `json:"choices"`
}

type oaiErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}
