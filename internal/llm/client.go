// Package llm provides the generative-language gateway used by the assistant.
package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/uclf/legal-aid-portal/pkg/logger"
	"github.com/uclf/legal-aid-portal/pkg/metrics"
	"github.com/uclf/legal-aid-portal/pkg/models"
)

// Fallback texts stored as the assistant reply when the provider cannot answer.
const (
	ConnectionErrorReply = "Connection error. Please try again."
	EmptyReply           = "I'm sorry, I encountered an error. Please try again."
	AnalyzeDocumentText  = "Please analyze this document."
)

// Document is a decoded attachment ready to hand to a provider.
type Document struct {
	Name     string
	MIMEType string
	Data     []byte
}

// Request is a single-turn generation request.
type Request struct {
	Model        string
	SystemPrompt string
	UserText     string
	Document     *Document
	MaxTokens    int
}

// Provider is the interface for LLM backends.
type Provider interface {
	// Generate returns the reply text for one user turn.
	Generate(ctx context.Context, req *Request) (string, error)

	// Name returns the provider name.
	Name() string
}

// ProviderName selects a backend.
type ProviderName string

const (
	ProviderGemini    ProviderName = "gemini"
	ProviderOpenAI    ProviderName = "openai"
	ProviderAnthropic ProviderName = "anthropic"
)

// ErrNoAPIKey is returned by the unavailable provider on every call.
var ErrNoAPIKey = errors.New("llm: provider API key is not configured")

// NewProvider creates a provider for name. A missing key yields a provider
// that always fails, so the gateway falls back to the connection-error reply.
func NewProvider(ctx context.Context, name ProviderName, apiKey string) (Provider, error) {
	if apiKey == "" {
		return Unavailable{Provider: string(name)}, nil
	}
	switch name {
	case ProviderOpenAI:
		return NewOpenAIClient(apiKey)
	case ProviderAnthropic:
		return NewAnthropicClient(apiKey)
	case ProviderGemini, "":
		return NewGeminiClient(ctx, apiKey)
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", name)
	}
}

// Unavailable is a provider that never answers.
type Unavailable struct{ Provider string }

func (u Unavailable) Generate(context.Context, *Request) (string, error) { return "", ErrNoAPIKey }
func (u Unavailable) Name() string                                       { return u.Provider }

/* ================================ Gateway ================================ */

// Gateway sends one turn to the configured provider and always produces text.
type Gateway struct {
	provider Provider
	model    string
	timeout  time.Duration
	log      *logger.Logger
}

// NewGateway wraps provider. A zero timeout means the caller's context governs.
func NewGateway(provider Provider, model string, timeout time.Duration, log *logger.Logger) *Gateway {
	if log == nil {
		log = logger.Nop()
	}
	return &Gateway{provider: provider, model: model, timeout: timeout, log: log}
}

// Generate returns the provider reply, or one of the fallback texts. It never fails.
func (g *Gateway) Generate(ctx context.Context, systemPrompt, userText string, att *models.Attachment) string {
	req := &Request{
		Model:        g.model,
		SystemPrompt: systemPrompt,
		UserText:     userText,
	}
	if att != nil {
		doc, err := DecodeAttachment(att)
		if err != nil {
			g.log.Warn("attachment decode failed", zap.String("name", att.Name), zap.Error(err))
			return ConnectionErrorReply
		}
		req.Document = doc
		if strings.TrimSpace(req.UserText) == "" {
			req.UserText = AnalyzeDocumentText
		}
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	start := time.Now()
	reply, err := g.call(ctx, req)
	elapsed := time.Since(start)

	switch {
	case err != nil:
		metrics.RecordGateway(g.provider.Name(), "error", elapsed.Seconds())
		g.log.Error("ai gateway call failed",
			zap.String("provider", g.provider.Name()),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
		return ConnectionErrorReply
	case strings.TrimSpace(reply) == "":
		metrics.RecordGateway(g.provider.Name(), "empty", elapsed.Seconds())
		g.log.Warn("ai gateway returned empty reply", zap.String("provider", g.provider.Name()))
		return EmptyReply
	}

	metrics.RecordGateway(g.provider.Name(), "success", elapsed.Seconds())
	g.log.Debug("ai gateway reply",
		zap.String("provider", g.provider.Name()),
		zap.Duration("elapsed", elapsed),
		zap.Int("chars", len(reply)),
	)
	return reply
}

// call turns a provider panic into an error.
func (g *Gateway) call(ctx context.Context, req *Request) (reply string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("provider panic: %v", r)
		}
	}()
	return g.provider.Generate(ctx, req)
}

// DecodeAttachment turns the base64 payload into raw bytes. Data URLs
// ("data:<mime>;base64,<payload>") are accepted as well.
func DecodeAttachment(att *models.Attachment) (*Document, error) {
	data := att.Data
	mime := att.Type
	if strings.HasPrefix(data, "data:") {
		header, payload, ok := strings.Cut(data, ",")
		if !ok {
			return nil, errors.New("malformed data url")
		}
		if mime == "" {
			mime = strings.TrimSuffix(strings.TrimPrefix(header, "data:"), ";base64")
		}
		data = payload
	}
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("decode attachment: %w", err)
	}
	if mime == "" {
		mime = "application/octet-stream"
	}
	return &Document{Name: att.Name, MIMEType: mime, Data: raw}, nil
}

// DecodedSize reports the byte length of a base64 payload without decoding it.
func DecodedSize(att *models.Attachment) int {
	data := att.Data
	if _, payload, ok := strings.Cut(data, ","); ok && strings.HasPrefix(data, "data:") {
		data = payload
	}
	return base64.StdEncoding.DecodedLen(len(data)) - strings.Count(data[max(0, len(data)-2):], "=")
}
