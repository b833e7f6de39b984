package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type contextKey string

const (
	organizationIDKey contextKey = "organization_id"
	keyPrefixKey      contextKey = "key_prefix"
	apiKeyScopesKey   contextKey = "api_key_scopes"
	requestIDKey      contextKey = "request_id"
)

func SetOrganizationID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, organizationIDKey, id)
}

// GetOrganizationID returns the organization the authenticated API key belongs to.
func GetOrganizationID(r *http.Request) (uuid.UUID, bool) {
	id, ok := r.Context().Value(organizationIDKey).(uuid.UUID)
	return id, ok
}

func SetKeyPrefix(ctx context.Context, prefix string) context.Context {
	return context.WithValue(ctx, keyPrefixKey, prefix)
}

func getKeyPrefix(r *http.Request) (string, bool) {
	prefix, ok := r.Context().Value(keyPrefixKey).(string)
	return prefix, ok
}

func SetScopes(ctx context.Context, scopes []string) context.Context {
	return context.WithValue(ctx, apiKeyScopesKey, scopes)
}

func getScopes(r *http.Request) []string {
	scopes, _ := r.Context().Value(apiKeyScopesKey).([]string)
	return scopes
}

// GetRequestID returns the id assigned by RequestID, or "" outside a request.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
