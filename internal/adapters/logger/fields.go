package logger

import (
	"context"
	"sort"
)

type fieldsKey struct{}

// WithFields returns a context whose log lines carry fields in addition to
// those passed at the call site. Nested calls accumulate.
func WithFields(ctx context.Context, fields map[string]interface{}) context.Context {
	merged := make(map[string]interface{}, len(fields))
	if parent, ok := ctx.Value(fieldsKey{}).(map[string]interface{}); ok {
		for k, v := range parent {
			merged[k] = v
		}
	}
	for k, v := range fields {
		merged[k] = v
	}
	return context.WithValue(ctx, fieldsKey{}, merged)
}

// collectFields merges context fields with call-site fields; call-site
// values win on key clashes.
func collectFields(ctx context.Context, fields []map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{})
	if ctx != nil {
		if fromCtx, ok := ctx.Value(fieldsKey{}).(map[string]interface{}); ok {
			for k, v := range fromCtx {
				out[k] = v
			}
		}
	}
	for _, f := range fields {
		for k, v := range f {
			out[k] = v
		}
	}
	return out
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
