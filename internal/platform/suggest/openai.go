package suggest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const (
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	DefaultOpenAIModel   = "gpt-4o"

	systemPrompt = "You are an expert Ayurvedic doctor. Always respond with valid JSON only."
)

// ModelConfig configures a ModelClient.
type ModelConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// ModelClient asks an OpenAI-compatible chat completion endpoint for
// suggestions and extracts the JSON array from its answer.
type ModelClient struct {
	cfg  ModelConfig
	http *http.Client
}

// NewModelClient fills unset fields with the defaults used in production:
// gpt-4o at temperature 0.7 with a 2000 token budget.
func NewModelClient(cfg ModelConfig) *ModelClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOpenAIBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.7
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 2000
	}
	return &ModelClient{cfg: cfg, http: newHTTPClient(cfg.Timeout)}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

func (c *ModelClient) Suggest(ctx context.Context, req Request) (*Response, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	payload, err := json.Marshal(chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: BuildPrompt(req)},
		},
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := gjson.GetBytes(body, "error.message").String()
		if msg == "" {
			msg = resp.Status
		}
		return nil, fmt.Errorf("model API error (status %d): %s", resp.StatusCode, msg)
	}

	content := gjson.GetBytes(body, "choices.0.message.content")
	if !content.Exists() {
		return nil, fmt.Errorf("%w: no choices in model response", ErrMalformedReply)
	}
	array, err := extractArray(content.String())
	if err != nil {
		return nil, err
	}
	meds, err := parseMedicines(gjson.Parse(array))
	if err != nil {
		return nil, err
	}
	return &Response{Success: true, Medicines: meds}, nil
}

// extractArray returns the text between the first '[' and the last ']',
// which strips code fences and any prose around the answer.
func extractArray(content string) (string, error) {
	start := strings.Index(content, "[")
	end := strings.LastIndex(content, "]")
	if start < 0 || end < start {
		return "", fmt.Errorf("%w: no JSON array in model answer", ErrMalformedReply)
	}
	array := content[start : end+1]
	if !gjson.Valid(array) {
		return "", fmt.Errorf("%w: model answer is not valid JSON", ErrMalformedReply)
	}
	return array, nil
}

// BuildPrompt renders the user prompt sent to the model.
func BuildPrompt(req Request) string {
	var b strings.Builder
	b.WriteString("You are an expert Ayurvedic doctor. Based on the following patient information, suggest appropriate Ayurvedic medicines.\n\n")
	fmt.Fprintf(&b, "Symptoms: %s\n", strings.Join(req.Symptoms, ", "))
	fmt.Fprintf(&b, "Health Conditions: %s\n\n", strings.Join(req.HealthConditions, ", "))
	b.WriteString(promptBody)
	return b.String()
}

const promptBody = `First, analyze and interpret the symptoms and health conditions provided (they may be in Hindi, Telugu, Tamil, or other Indian languages). Then provide a list of 5-8 BRANDED Ayurvedic medicines (commercial formulations) that would be appropriate.

IMPORTANT GUIDELINES:
- Suggest actual BRANDED medicines available in the market (e.g., "Chyawanprash", "Triphala Churna", "Liv.52", "Brahmi Vati", etc.)
- Include both classical formulations (like Triphala, Dashamularishta) and modern branded products
- Each medicine should be a POLYHERBAL FORMULATION (combination of multiple herbs/drugs), not single herbs
- Include the main constituent herbs/drugs in the description
- Focus on medicines commonly prescribed by Ayurvedic practitioners

For each medicine, provide:
1. Brand/Product name (commercial name if available, otherwise classical formulation name)
2. Brief description including main herbs/constituents and what it treats
3. Recommended dosage (tablets, syrup, churna, etc.)
4. Best timing to take (e.g., "Before meals", "After meals", "Before bedtime")
5. Any important precautions

IMPORTANT: If you don't understand the symptoms or health conditions, do NOT provide generic medicines. The symptoms may be described in the patient's native language (such as Hindi, Telugu, Tamil, or other Indian languages) - try to interpret them accurately before suggesting medicines.

Format your response as a JSON array with the following structure:
[
  {
    "name": "Brand/Medicine Name (Main constituents in brackets if needed)",
    "description": "What it treats, benefits, and key ingredients",
    "understood_condition": "Your interpretation of the patient's symptoms/condition in English",
    "recommended_dosage": "Dosage information with form",
    "timing": "When to take",
    "precautions": "Important precautions if any"
  }
]

IMPORTANT: Return ONLY the JSON array, no additional text.`
