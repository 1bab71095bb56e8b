package analysis

import "context"

// Input is everything the upstream model needs for one analysis.
type Input struct {
	Image    []byte
	MIMEType string // "image/jpeg" | "image/png"
}

// Model sends an image plus the fixed instruction to a multimodal model and
// returns the raw text it produced. Implementations must report failures as
// *Error so callers can classify them.
type Model interface {
	Name() string
	Analyze(ctx context.Context, in Input) (string, error)
}

// ModelFunc adapts a plain function to Model.
type ModelFunc func(ctx context.Context, in Input) (string, error)

func (f ModelFunc) Name() string { return "func" }

func (f ModelFunc) Analyze(ctx context.Context, in Input) (string, error) { return f(ctx, in) }
