package services

import "context"

type contextKey string

const (
	operationIDKey contextKey = "operation_id"
	workbookKey    contextKey = "workbook"
	runIDKey       contextKey = "run_id"
)

// WithOperationID annotates context with the agent operation identifier.
func WithOperationID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, operationIDKey, id)
}

// OperationIDFromContext extracts the operation identifier if present.
func OperationIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(operationIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithWorkbook annotates context with the workbook a call is acting on.
func WithWorkbook(ctx context.Context, name string) context.Context {
	if name == "" {
		return ctx
	}
	return context.WithValue(ctx, workbookKey, name)
}

// WorkbookFromContext returns the workbook name if present.
func WorkbookFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(workbookKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithRunID annotates context with the history run identifier.
func WithRunID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, runIDKey, id)
}

// RunIDFromContext extracts the history run identifier if present.
func RunIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(runIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
