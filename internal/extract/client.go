// Package extract turns raw document text into sanitized, validated financial
// records by prompting a generative model and defensively normalizing its
// output.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Generator is the generative-model collaborator. Responses are raw completion
// text and are treated as untrusted: no JSON validity is assumed.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// FailureKind classifies why an extraction attempt failed.
type FailureKind string

const (
	// KindModelCallFailed covers network, auth and quota failures of the
	// model call itself.
	KindModelCallFailed FailureKind = "model_call_failed"
	// KindMalformedResponse means the response was not valid JSON even after
	// code-fence stripping.
	KindMalformedResponse FailureKind = "malformed_response"
)

// Error is a classified extraction failure. Raw holds the model completion
// when one was received, so undecodable responses stay auditable.
type Error struct {
	Kind FailureKind
	Err  error
	Raw  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("extraction failed (%s): %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Metadata describes one extraction run: how many records the model produced
// per array and how many survived sanitization.
type Metadata struct {
	BankAccountsCount int       `json:"bankAccountsCount"`
	TransactionsCount int       `json:"transactionsCount"`
	HoldingsCount     int       `json:"holdingsCount"`
	RawBankAccounts   int       `json:"rawBankAccounts"`
	RawTransactions   int       `json:"rawTransactions"`
	RawHoldings       int       `json:"rawHoldings"`
	ExtractedAt       time.Time `json:"extractedAt"`
}

// Result is a successful extraction outcome. Raw is the completion exactly as
// the model returned it, fences and prose included; it feeds the audit trail
// and is kept out of API responses.
type Result struct {
	Data *Extraction `json:"data"`
	Meta Metadata    `json:"metadata"`
	Raw  string      `json:"-"`
}

// Client drives structured extraction against an injected Generator.
type Client struct {
	gen       Generator
	retryUnit time.Duration
	now       func() time.Time
	log       zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithRetryUnit sets the base backoff unit between retry attempts.
func WithRetryUnit(d time.Duration) Option {
	return func(c *Client) {
		c.retryUnit = d
	}
}

// WithLogger sets the client logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) {
		c.log = log
	}
}

// NewClient creates an extraction client around the given model collaborator.
func NewClient(gen Generator, opts ...Option) *Client {
	c := &Client{
		gen:       gen,
		retryUnit: time.Second,
		now:       time.Now,
		log:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Extract runs a single extraction attempt: build the prompt, call the model,
// strip any markdown wrapping the model added despite instructions, decode,
// and sanitize. A top-level key that is missing or not an array defaults to an
// empty array rather than failing the run; only a response that is not valid
// JSON at all is a hard failure.
func (c *Client) Extract(ctx context.Context, documentText string) (*Result, error) {
	prompt := BuildPrompt(documentText)

	raw, err := c.gen.Generate(ctx, prompt)
	if err != nil {
		return nil, &Error{Kind: KindModelCallFailed, Err: err}
	}

	clean := stripCodeFences(raw)

	var decoded map[string]interface{}
	if err := json.Unmarshal([]byte(clean), &decoded); err != nil {
		return nil, &Error{Kind: KindMalformedResponse, Err: fmt.Errorf("decoding model response: %w", err), Raw: raw}
	}

	rawExtraction := &RawExtraction{
		BankAccounts: arrayOrEmpty(decoded, "bankAccounts"),
		Transactions: arrayOrEmpty(decoded, "transactions"),
		Holdings:     arrayOrEmpty(decoded, "holdings"),
	}

	sanitized := Sanitize(rawExtraction)

	c.log.Debug().
		Int("bank_accounts", len(sanitized.BankAccounts)).
		Int("transactions", len(sanitized.Transactions)).
		Int("holdings", len(sanitized.Holdings)).
		Msg("Extraction sanitized")

	return &Result{
		Data: sanitized,
		Raw:  raw,
		Meta: Metadata{
			BankAccountsCount: len(sanitized.BankAccounts),
			TransactionsCount: len(sanitized.Transactions),
			HoldingsCount:     len(sanitized.Holdings),
			RawBankAccounts:   len(rawExtraction.BankAccounts),
			RawTransactions:   len(rawExtraction.Transactions),
			RawHoldings:       len(rawExtraction.Holdings),
			ExtractedAt:       c.now().UTC(),
		},
	}, nil
}

// ExtractWithRetry runs Extract up to maxAttempts times with linearly
// increasing backoff (attempt number times the retry unit), then makes one
// final unconditional attempt and returns its outcome whatever it is. A
// persistently failing document therefore costs maxAttempts+1 model
// invocations; callers must budget for that.
func (c *Client) ExtractWithRetry(ctx context.Context, documentText string, maxAttempts int) (*Result, error) {
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result, err := c.Extract(ctx, documentText)
		if err == nil {
			return result, nil
		}

		c.log.Warn().Err(err).Int("attempt", attempt).Msg("Extraction attempt failed")

		if attempt < maxAttempts {
			if err := sleepCtx(ctx, time.Duration(attempt)*c.retryUnit); err != nil {
				return nil, &Error{Kind: KindModelCallFailed, Err: err}
			}
		}
	}

	return c.Extract(ctx, documentText)
}

// stripCodeFences removes markdown code-fence wrapping (```json ... ``` or
// ``` ... ```) and keeps only the substring from the first '{' to the last
// '}' so stray prose around the object does not break decoding.
func stripCodeFences(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		}
		if idx := strings.LastIndex(s, "```"); idx != -1 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}

	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end > start {
			s = s[start : end+1]
		}
	}

	return strings.TrimSpace(s)
}

// arrayOrEmpty returns the array under key, or an empty array when the key is
// missing or holds a non-array value.
func arrayOrEmpty(m map[string]interface{}, key string) []interface{} {
	v, ok := m[key]
	if !ok {
		return []interface{}{}
	}
	arr, ok := v.([]interface{})
	if !ok {
		return []interface{}{}
	}
	return arr
}

// sleepCtx waits for d or until the context is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
