package diag

import "context"

type contextKey int

const (
	requestIDKey contextKey = iota
	accountNumberKey
)

func stringValue(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	val, _ := ctx.Value(key).(string)
	return val
}

// ContextWithRequestID returns a context carrying a request id
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDValue returns a request id of the context, empty if not set
func RequestIDValue(ctx context.Context) string {
	return stringValue(ctx, requestIDKey)
}

// ContextWithAccountNumber returns a context of an operation on a given account
func ContextWithAccountNumber(ctx context.Context, number string) context.Context {
	return context.WithValue(ctx, accountNumberKey, number)
}

// AccountNumberValue returns an account number of the context, empty if not set
func AccountNumberValue(ctx context.Context) string {
	return stringValue(ctx, accountNumberKey)
}

// contextFields collects values that are added to each log record
func contextFields(ctx context.Context) map[string]string {
	fields := map[string]string{}
	if requestID := RequestIDValue(ctx); requestID != "" {
		fields["requestID"] = requestID
	}
	if number := AccountNumberValue(ctx); number != "" {
		fields["accountNumber"] = number
	}
	return fields
}
