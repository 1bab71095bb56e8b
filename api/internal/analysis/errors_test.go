package analysis

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindTransient(t *testing.T) {
	transient := map[Kind]bool{
		KindResourceExhausted: true,
		KindUnavailable:       true,
		KindTimeout:           true,
		KindPermissionDenied:  false,
		KindInvalidArgument:   false,
		KindMalformedResponse: false,
		KindOther:             false,
	}
	for k, want := range transient {
		assert.Equal(t, want, k.Transient(), k.String())
	}
}

func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", Errorf(KindInvalidArgument, "gemini analyze", "bad image"))

	assert.Equal(t, KindInvalidArgument, KindOf(wrapped))
	assert.Equal(t, KindTimeout, KindOf(fmt.Errorf("call: %w", context.DeadlineExceeded)))
	assert.Equal(t, KindOther, KindOf(errors.New("x")))
	assert.Equal(t, KindOther, KindOf(nil))
}

func TestErrorMessage(t *testing.T) {
	err := Errorf(KindResourceExhausted, "gemini analyze", "quota %d", 429)

	assert.Equal(t, "gemini analyze: resource_exhausted: quota 429", err.Error())
	assert.Equal(t, "quota 429", Detail(err))
	assert.Equal(t, "op: timeout", (&Error{Kind: KindTimeout, Op: "op"}).Error())
	assert.Equal(t, "plain", Detail(errors.New("plain")))
	assert.Empty(t, Detail(nil))
}

func TestErrorUnwrap(t *testing.T) {
	base := errors.New("root cause")
	err := &Error{Kind: KindUnavailable, Op: "op", Err: base}

	assert.ErrorIs(t, err, base)
}
