package sias

import "context"

type clientIPContextKey struct{}
type principalContextKey struct{}

// UnknownIP is recorded when no client address was attached to the context.
const UnknownIP = "unknown"

// WithClientIP attaches the caller's IP address to ctx. The Engine records
// it on audit entries and uses it for reset throttling.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

// WithPrincipal attaches an authenticated principal to ctx.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext returns the principal attached by [WithPrincipal].
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	if ctx == nil {
		return nil, false
	}
	p, ok := ctx.Value(principalContextKey{}).(*Principal)
	return p, ok && p != nil
}

func clientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return UnknownIP
	}

	ip, _ := ctx.Value(clientIPContextKey{}).(string)
	if ip == "" {
		return UnknownIP
	}
	return ip
}
