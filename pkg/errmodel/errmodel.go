package errmodel

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Category values for compact errors.
const (
	CategoryValidation = "validation"
	CategoryBackend    = "backend"
	CategoryReplay     = "replay"
	CategoryStorage    = "storage"
	CategorySystem     = "system"
)

// Well-known codes. Callers branch on these rather than on messages.
const (
	CodeInvalidArgument    = "invalid_argument"
	CodeInvalidCorpus      = "invalid_corpus"
	CodeUnsupportedBackend = "unsupported_backend"
	CodeMissingExperiment  = "missing_experiment"
	CodeReplayExhausted    = "replay_exhausted"
	CodeNotFound           = "not_found"
	CodeInternal           = "internal"
)

// Error is the compact error payload returned by APIs and used internally.
// It implements the error interface.
type Error struct {
	Category string         `json:"category"`
	Code     string         `json:"code"`
	Message  string         `json:"message"`
	Context  map[string]any `json:"context,omitempty"`
	Causes   []Error        `json:"causes,omitempty"`
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Code != "" {
		return e.Code + ": " + e.Message
	}
	return e.Message
}

// Is reports whether target is an *Error with the same category and code.
// Sentinel values declared with New can therefore be matched with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.Category == t.Category && e.Code == t.Code
}

// New constructs a new compact error.
func New(category, code, message string, ctx map[string]any, causes ...error) *Error {
	ce := &Error{Category: category, Code: code, Message: truncate(message, 512)}
	if len(ctx) > 0 {
		ce.Context = truncateContext(ctx)
	}
	for _, c := range causes {
		if c == nil {
			continue
		}
		ce.Causes = append(ce.Causes, *From(c))
	}
	return ce
}

// From converts any error into a compact Error. If err is already *Error, it's returned as-is.
func From(err error) *Error {
	var ce *Error
	if err == nil {
		return nil
	}
	if errors.As(err, &ce) {
		return ce
	}
	// Default to system/internal for unknown error types.
	return &Error{Category: CategorySystem, Code: CodeInternal, Message: truncate(err.Error(), 512)}
}

// Convenience constructors.
func Validation(code, message string, ctx map[string]any) *Error {
	return New(CategoryValidation, code, message, ctx)
}

func Backend(code, message string, ctx map[string]any) *Error {
	return New(CategoryBackend, code, message, ctx)
}

func Replay(code, message string, ctx map[string]any) *Error {
	return New(CategoryReplay, code, message, ctx)
}

func Storage(code, message string, ctx map[string]any, cause error) *Error {
	if cause != nil {
		return New(CategoryStorage, code, message, ctx, cause)
	}
	return New(CategoryStorage, code, message, ctx)
}

func System(code, message string, ctx map[string]any, cause error) *Error {
	if cause != nil {
		return New(CategorySystem, code, message, ctx, cause)
	}
	return New(CategorySystem, code, message, ctx)
}

// WithContext returns a copy of e carrying ctx. The copy still matches e under errors.Is.
func (e *Error) WithContext(ctx map[string]any) *Error {
	if e == nil {
		return nil
	}
	cp := *e
	if len(ctx) > 0 {
		cp.Context = truncateContext(ctx)
	}
	return &cp
}

// HTTPStatus maps category/code to HTTP status.
func HTTPStatus(e *Error) int {
	if e == nil {
		return http.StatusInternalServerError
	}
	switch e.Category {
	case CategoryValidation:
		switch e.Code {
		case CodeNotFound:
			return http.StatusNotFound
		default:
			return http.StatusBadRequest
		}
	case CategoryBackend:
		return http.StatusUnprocessableEntity
	case CategoryReplay:
		switch e.Code {
		case CodeMissingExperiment:
			return http.StatusNotFound
		case CodeReplayExhausted:
			return http.StatusGone
		default:
			return http.StatusConflict
		}
	case CategoryStorage:
		if e.Code == CodeNotFound {
			return http.StatusNotFound
		}
		return http.StatusBadGateway
	case CategorySystem:
		fallthrough
	default:
		return http.StatusInternalServerError
	}
}

// GRPCCode maps category/code to a gRPC status code.
func GRPCCode(e *Error) codes.Code {
	if e == nil {
		return codes.Unknown
	}
	switch e.Category {
	case CategoryValidation:
		if e.Code == CodeNotFound {
			return codes.NotFound
		}
		return codes.InvalidArgument
	case CategoryBackend:
		return codes.FailedPrecondition
	case CategoryReplay:
		switch e.Code {
		case CodeMissingExperiment:
			return codes.NotFound
		case CodeReplayExhausted:
			return codes.ResourceExhausted
		default:
			return codes.FailedPrecondition
		}
	case CategoryStorage:
		if e.Code == CodeNotFound {
			return codes.NotFound
		}
		return codes.Unavailable
	default:
		return codes.Internal
	}
}

// GRPCStatus converts err into a gRPC status error.
func GRPCStatus(err error) error {
	ce := From(err)
	if ce == nil {
		return nil
	}
	return status.Error(GRPCCode(ce), ce.Error())
}

// WriteHTTP writes a compact error envelope to the response writer.
// It attempts to include the trace_id if present in ctx.
func WriteHTTP(w http.ResponseWriter, r *http.Request, err error) {
	ce := From(err)
	if ce == nil {
		ce = &Error{Category: CategorySystem, Code: CodeInternal, Message: "unknown error"}
	}
	status := HTTPStatus(ce)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	traceID := ""
	if r != nil {
		if span := trace.SpanFromContext(r.Context()); span != nil {
			sc := span.SpanContext()
			if sc.HasTraceID() {
				traceID = sc.TraceID().String()
			}
		}
	}
	// Envelope { error: Error, trace_id?: string }
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error":    ce,
		"trace_id": traceID,
	})
}

// truncate trims a string to max characters.
func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

// truncateContext trims long string values in the context map.
func truncateContext(ctx map[string]any) map[string]any {
	out := make(map[string]any, len(ctx))
	for k, v := range ctx {
		switch t := v.(type) {
		case string:
			out[k] = truncate(t, 256)
		case int, int64, bool, float64:
			out[k] = t
		default:
			b, err := json.Marshal(t)
			if err == nil && len(b) > 0 {
				s := string(b)
				if len(s) > 256 {
					s = truncate(s, 256)
				}
				out[k] = s
			} else {
				out[k] = t
			}
		}
	}
	return out
}

// IsCategory checks if err belongs to a specific category.
func IsCategory(err error, category string) bool {
	ce := From(err)
	return ce != nil && strings.EqualFold(ce.Category, category)
}

// HasCode checks if err carries a specific code.
func HasCode(err error, code string) bool {
	var ce *Error
	if !errors.As(err, &ce) {
		return false
	}
	return ce.Code == code
}

// codeCategory is the category each well-known code is usually raised
// under. Parse falls back to it for text that carries no category.
var codeCategory = map[string]string{
	CodeInvalidArgument:    CategoryValidation,
	CodeInvalidCorpus:      CategoryValidation,
	CodeNotFound:           CategoryValidation,
	CodeUnsupportedBackend: CategoryBackend,
	CodeMissingExperiment:  CategoryReplay,
	CodeReplayExhausted:    CategoryReplay,
	CodeInternal:           CategorySystem,
}

var knownCategories = map[string]bool{
	CategoryValidation: true,
	CategoryBackend:    true,
	CategoryReplay:     true,
	CategoryStorage:    true,
	CategorySystem:     true,
}

// Wire renders err as "category/code: message", the form Parse reads back
// with the category intact.
func Wire(err error) string {
	ce := From(err)
	if ce == nil {
		return ""
	}
	return ce.Category + "/" + ce.Code + ": " + ce.Message
}

// Parse rebuilds an Error from the text produced by Wire or Error, for
// errors that crossed a boundary carrying only their message. Unknown codes
// and text without a code parse as system/internal.
func Parse(text string) *Error {
	head, msg, ok := strings.Cut(text, ": ")
	if !ok {
		return &Error{Category: CategorySystem, Code: CodeInternal, Message: truncate(text, 512)}
	}
	if cat, code, qualified := strings.Cut(head, "/"); qualified {
		if knownCategories[cat] && code != "" {
			return &Error{Category: cat, Code: code, Message: msg}
		}
	} else if cat, known := codeCategory[head]; known {
		return &Error{Category: cat, Code: head, Message: msg}
	}
	return &Error{Category: CategorySystem, Code: CodeInternal, Message: truncate(text, 512)}
}
