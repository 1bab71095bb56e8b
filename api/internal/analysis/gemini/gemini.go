package gemini

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"

	"pestai/api/internal/analysis"
	"pestai/api/internal/analysis/prompt"
	"pestai/api/internal/metrics"
)

const DefaultModel = "gemini-2.5-flash"

// Engine calls Gemini with the universal pest/plant prompt. One client is
// shared by all requests; Close releases it.
type Engine struct {
	Model string

	client *genai.Client
	gm     *genai.GenerativeModel
	log    *logrus.Entry
}

func New(ctx context.Context, apiKey, model string, log *logrus.Logger) (*Engine, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("GEMINI_API_KEY is empty")
	}
	model = strings.TrimSpace(model)
	if model == "" {
		model = DefaultModel
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}

	gm := cl.GenerativeModel(model)
	// Strict JSON only
	gm.GenerationConfig = genai.GenerationConfig{
		Temperature:      ptrFloat32(0),
		ResponseMIMEType: "application/json",
	}
	gm.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(prompt.Universal)},
	}

	return &Engine{
		Model:  model,
		client: cl,
		gm:     gm,
		log:    log.WithFields(logrus.Fields{"engine": "gemini", "model": model}),
	}, nil
}

func (e *Engine) Name() string { return "gemini" }

func (e *Engine) Close() error { return e.client.Close() }

// Analyze runs one attempt. Retrying is the caller's business.
func (e *Engine) Analyze(ctx context.Context, in analysis.Input) (string, error) {
	const op = "gemini analyze"

	parts := []genai.Part{
		genai.Text(prompt.JSONOnly),
		&genai.Blob{MIMEType: in.MIMEType, Data: in.Image},
	}

	start := time.Now()
	metrics.ModelCallsTotal.Inc()
	resp, err := e.gm.GenerateContent(ctx, parts...)
	latency := time.Since(start)
	metrics.ModelLatency.Observe(latency.Seconds())

	if err != nil {
		kind := Classify(err)
		metrics.ModelErrorsTotal.WithLabelValues(kind.String()).Inc()
		e.log.WithError(err).WithFields(logrus.Fields{
			"kind":    kind.String(),
			"latency": latency,
		}).Warn("gemini call failed")
		return "", &analysis.Error{Kind: kind, Op: op, Err: err}
	}

	txt := firstText(resp)
	if strings.TrimSpace(txt) == "" {
		metrics.ModelErrorsTotal.WithLabelValues(analysis.KindMalformedResponse.String()).Inc()
		return "", analysis.Errorf(analysis.KindMalformedResponse, op, "empty response (finish reason: %s)", finishReason(resp))
	}

	e.log.WithFields(logrus.Fields{
		"latency":   latency,
		"image_len": len(in.Image),
		"resp_len":  len(txt),
	}).Debug("gemini call ok")
	return txt, nil
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	for _, c := range resp.Candidates {
		if c.Content == nil {
			continue
		}
		for _, p := range c.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				return string(t)
			}
		}
	}
	return ""
}

func finishReason(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return "no candidates"
	}
	return resp.Candidates[0].FinishReason.String()
}

func ptrFloat32(v float32) *float32 { return &v }
