// Package ai extracts transaction pre-fill data from receipt images with an
// OpenAI-compatible vision model.
package ai

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/shopspring/decimal"
	"github.com/xeipuuv/gojsonschema"

	"finance-ledger-go/internal/config"
	"finance-ledger-go/internal/money"
)

//go:embed prompt.txt
var promptText string

//go:embed receipt.schema.json
var receiptSchema string

var (
	ErrNotConfigured = errors.New("OPENAI_API_KEY missing")
	ErrNotAReceipt   = errors.New("image is not a receipt")
	ErrBadImage      = errors.New("unsupported image")
	// ErrInvalidOutput: the model answered with JSON that does not match the receipt shape.
	ErrInvalidOutput = errors.New("invalid model output")
)

var fences = regexp.MustCompile("```(?:json)?\\n?")

// Receipt is a best-effort guess used to pre-fill a new transaction.
type Receipt struct {
	Amount       decimal.Decimal `json:"amount"`
	Date         *time.Time      `json:"date,omitempty"`
	Description  string          `json:"description"`
	MerchantName string          `json:"merchant_name"`
	Category     string          `json:"category"`
}

type ReceiptScanner interface {
	Scan(ctx context.Context, image []byte, mimeType string) (*Receipt, error)
}

type OpenAIClient struct {
	client *openai.Client
	model  string
	hasKey bool
	schema *gojsonschema.Schema
}

func NewOpenAIClient(cfg *config.Config) (*OpenAIClient, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(receiptSchema))
	if err != nil {
		return nil, fmt.Errorf("receipt schema: %w", err)
	}
	oc := openai.DefaultConfig(cfg.OpenAIKey)
	oc.BaseURL = cfg.OpenAIBaseURL
	return &OpenAIClient{
		client: openai.NewClientWithConfig(oc),
		model:  cfg.OpenAIVisionModel,
		hasKey: cfg.OpenAIKey != "",
		schema: schema,
	}, nil
}

func (c *OpenAIClient) Scan(ctx context.Context, image []byte, mimeType string) (*Receipt, error) {
	if !c.hasKey {
		return nil, ErrNotConfigured
	}
	if len(image) == 0 {
		return nil, fmt.Errorf("%w: empty upload", ErrBadImage)
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return nil, fmt.Errorf("%w: content type %q", ErrBadImage, mimeType)
	}

	dataURL := "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(image)
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: promptText},
					{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{
						URL:    dataURL,
						Detail: openai.ImageURLDetailAuto,
					}},
				},
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.1,
	})
	if err != nil {
		return nil, fmt.Errorf("vision request: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices")
	}
	return c.parse(resp.Choices[0].Message.Content)
}

func (c *OpenAIClient) parse(content string) (*Receipt, error) {
	raw := strings.TrimSpace(fences.ReplaceAllString(content, ""))
	if raw == "" || raw == "{}" {
		return nil, ErrNotAReceipt
	}

	res, err := c.schema.Validate(gojsonschema.NewStringLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOutput, err)
	}
	if !res.Valid() {
		d := []string{}
		for _, e := range res.Errors() {
			d = append(d, e.String())
		}
		return nil, fmt.Errorf("%w: %s", ErrInvalidOutput, strings.Join(d, "; "))
	}

	var out struct {
		Amount       json.Number `json:"amount"`
		Date         string      `json:"date"`
		Description  string      `json:"description"`
		MerchantName string      `json:"merchantName"`
		Category     string      `json:"category"`
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOutput, err)
	}

	amount, err := money.Parse(out.Amount.String())
	if err != nil {
		return nil, fmt.Errorf("%w: amount: %v", ErrInvalidOutput, err)
	}
	r := &Receipt{
		Amount:       amount,
		Description:  strings.TrimSpace(out.Description),
		MerchantName: strings.TrimSpace(out.MerchantName),
		Category:     out.Category,
	}
	if d, ok := parseDate(out.Date); ok {
		r.Date = &d
	}
	return r, nil
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, true
	}
	return time.Time{}, false
}
