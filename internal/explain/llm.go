package explain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"medbill/internal/config"
	"medbill/internal/port"
)

const apiURL = "https://api.openai.com/v1/chat/completions"

const defaultModel = "gpt-4o-mini"

const systemPrompt = "You are a medical billing expert. Explain each service clearly " +
	"and justify why the patient might receive this bill. Use only the numbers provided."

// llmConfidence is reported for successfully generated narratives.
const llmConfidence = 0.9

// LLM generates narratives through an OpenAI-compatible chat completions
// API. Every failure falls back to the wrapped deterministic engine, so
// Explain never surfaces an error.
type LLM struct {
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
	endpoint    string
	currency    string
	client      *http.Client
	fallback    port.Explainer
}

// NewLLM creates an LLM explainer against the public API endpoint.
func NewLLM(cfg *config.Config, fallback port.Explainer) *LLM {
	return newLLM(cfg, fallback, apiURL)
}

// NewLLMWithEndpoint creates an LLM explainer with a custom API endpoint
// (useful for testing).
func NewLLMWithEndpoint(cfg *config.Config, fallback port.Explainer, endpoint string) *LLM {
	return newLLM(cfg, fallback, endpoint)
}

func newLLM(cfg *config.Config, fallback port.Explainer, endpoint string) *LLM {
	model := cfg.Explainer.Model
	if model == "" {
		model = defaultModel
	}
	maxTokens := cfg.Explainer.MaxTokens
	if maxTokens == 0 {
		maxTokens = 350
	}
	timeout := time.Duration(cfg.Explainer.TimeoutSecs) * time.Second
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &LLM{
		apiKey:      cfg.Explainer.APIKey,
		model:       model,
		temperature: cfg.Explainer.Temperature,
		maxTokens:   maxTokens,
		endpoint:    endpoint,
		currency:    cfg.Currency,
		client:      &http.Client{Timeout: timeout},
		fallback:    fallback,
	}
}

// Explain asks the model for a narrative and falls back to the deterministic
// engine on any failure.
func (l *LLM) Explain(ctx context.Context, ec port.ExplainContext) port.Explanation {
	narrative, err := l.complete(ctx, buildPrompt(ec, l.currency))
	if err != nil {
		log.Printf("explain.LLM: falling back to deterministic narrative: %v", err)
		return l.fallback.Explain(ctx, ec)
	}
	return port.Explanation{Narrative: narrative, Confidence: llmConfidence, Warnings: []string{}}
}

func (l *LLM) complete(ctx context.Context, prompt string) (string, error) {
	reqBody := map[string]interface{}{
		"model":       l.model,
		"temperature": l.temperature,
		"max_tokens":  l.maxTokens,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": prompt},
		},
	}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+l.apiKey)

	resp, err := l.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling completions API: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("completions API error (status %d): %s", resp.StatusCode, truncate(string(respBody), 500))
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("unmarshaling response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("empty response from API: no choices")
	}
	narrative := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if narrative == "" {
		return "", fmt.Errorf("empty narrative in API response")
	}
	return narrative, nil
}

// buildPrompt summarizes the normalized line for the model. Only figures
// actually extracted appear; the model is told to use nothing else.
func buildPrompt(ec port.ExplainContext, currency string) string {
	var b strings.Builder
	b.WriteString("Explain the following medical billing line item in two sentences. ")
	b.WriteString("Clarify what the service is, why it may have been medically necessary, and how the math results in the patient responsibility. ")
	fmt.Fprintf(&b, "Line number: %d. Description: %s. ", ec.LineNo, ec.Description)
	fmt.Fprintf(&b, "Code: %s (%s). ", strOr(ec.Code, "unknown"), ec.CodeType)
	if ec.DateOfService != nil {
		fmt.Fprintf(&b, "Date of service: %s. ", ec.DateOfService.Format("2006-01-02"))
	}
	fmt.Fprintf(&b, "Charge: %s%.2f. ", currency, ec.Charge)
	if ec.Allowed != nil {
		fmt.Fprintf(&b, "Allowed: %s%.2f. ", currency, *ec.Allowed)
	}
	if ec.PayerPaid != nil {
		fmt.Fprintf(&b, "Insurance paid: %s%.2f. ", currency, *ec.PayerPaid)
	}
	if len(ec.Adjustments) > 0 {
		adjustments := make([]string, 0, len(ec.Adjustments))
		for _, a := range ec.Adjustments {
			adjustments = append(adjustments, fmt.Sprintf("%s %s%.2f", a.Type, currency, a.Amount))
		}
		fmt.Fprintf(&b, "Adjustments: %s. ", strings.Join(adjustments, ", "))
	}
	if ec.Provider != nil {
		fmt.Fprintf(&b, "Provider: %s. ", *ec.Provider)
	}
	if ec.Payer != nil {
		fmt.Fprintf(&b, "Payer: %s. ", *ec.Payer)
	}
	components := describeComponents(ec.PatientResp, currency)
	if components == "" {
		components = "not itemized"
	}
	fmt.Fprintf(&b, "Patient responsibility: %s, total %s%.2f.", components, currency, ec.PatientTotal)
	return b.String()
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
