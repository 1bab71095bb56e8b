package gemini

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/generative-ai-go/genai"
	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"pestai/api/internal/analysis"
)

// Classify maps a Gemini client error onto an analysis.Kind. The client may
// surface gRPC statuses, REST errors wrapped in apierror, or plain
// googleapi errors depending on transport.
func Classify(err error) analysis.Kind {
	if err == nil {
		return analysis.KindOther
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return analysis.KindTimeout
	}

	var blocked *genai.BlockedError
	if errors.As(err, &blocked) {
		return analysis.KindMalformedResponse
	}

	var ae *apierror.APIError
	if errors.As(err, &ae) {
		if st := ae.GRPCStatus(); st != nil {
			return fromCode(st.Code())
		}
		if c := ae.HTTPCode(); c > 0 {
			return fromHTTP(c)
		}
	}

	var ge *googleapi.Error
	if errors.As(err, &ge) {
		return fromHTTP(ge.Code)
	}

	if st, ok := status.FromError(err); ok {
		return fromCode(st.Code())
	}
	return analysis.KindOther
}

func fromCode(c codes.Code) analysis.Kind {
	switch c {
	case codes.ResourceExhausted:
		return analysis.KindResourceExhausted
	case codes.Unavailable:
		return analysis.KindUnavailable
	case codes.DeadlineExceeded:
		return analysis.KindTimeout
	case codes.PermissionDenied, codes.Unauthenticated:
		return analysis.KindPermissionDenied
	case codes.InvalidArgument:
		return analysis.KindInvalidArgument
	default:
		return analysis.KindOther
	}
}

func fromHTTP(code int) analysis.Kind {
	switch code {
	case http.StatusTooManyRequests:
		return analysis.KindResourceExhausted
	case http.StatusServiceUnavailable:
		return analysis.KindUnavailable
	case http.StatusGatewayTimeout, http.StatusRequestTimeout:
		return analysis.KindTimeout
	case http.StatusUnauthorized, http.StatusForbidden:
		return analysis.KindPermissionDenied
	case http.StatusBadRequest:
		return analysis.KindInvalidArgument
	default:
		return analysis.KindOther
	}
}
