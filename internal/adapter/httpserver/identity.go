package httpserver

import (
	"context"
	"encoding/hex"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"golang.org/x/crypto/blake2b"

	"github.com/fairyhunter13/career-agent-api/internal/config"
	obsctx "github.com/fairyhunter13/career-agent-api/internal/observability"
)

// IdentityResolver derives the rate-limit key of a caller.
//
//   - remote_addr: the connection address without port.
//   - forwarded_for: the X-Forwarded-For entry Hops positions from the right,
//     i.e. the address appended by the outermost trusted proxy.
//   - forwarded_first: the first X-Forwarded-For entry. Clients can forge it.
//
// Any strategy falls back to the connection address when the header is
// missing, too short or malformed.
type IdentityResolver struct {
	Strategy string
	Hops     int
	salt     []byte
}

// NewIdentityResolver builds a resolver. Unknown strategies behave like
// remote_addr.
func NewIdentityResolver(strategy string, hops int, salt string) *IdentityResolver {
	if hops < 1 {
		hops = 1
	}
	return &IdentityResolver{Strategy: strategy, Hops: hops, salt: []byte(salt)}
}

// ClientID returns the identity of r.
func (ir *IdentityResolver) ClientID(r *http.Request) string {
	remote := remoteHost(r.RemoteAddr)
	xff := r.Header.Get("X-Forwarded-For")
	if xff == "" {
		return remote
	}
	parts := strings.Split(xff, ",")
	var candidate string
	switch ir.Strategy {
	case config.IdentityForwardedFor:
		if len(parts) < ir.Hops {
			return remote
		}
		candidate = parts[len(parts)-ir.Hops]
	case config.IdentityForwardedFirst:
		candidate = parts[0]
	default:
		return remote
	}
	candidate = strings.TrimSpace(candidate)
	if net.ParseIP(candidate) == nil {
		return remote
	}
	return candidate
}

// Fingerprint is a salted blake2b digest of a client identity, safe to log.
func (ir *IdentityResolver) Fingerprint(clientID string) string {
	h, _ := blake2b.New256(nil)
	_, _ = h.Write(ir.salt)
	_, _ = h.Write([]byte(clientID))
	return hex.EncodeToString(h.Sum(nil)[:8])
}

func remoteHost(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

type clientIDKey struct{}

// ClientIDFromContext returns the identity stored by Identify.
func ClientIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(clientIDKey{}).(string); ok {
		return v
	}
	return ""
}

// Identify resolves the caller once per request. The raw identity stays in
// the context for the limiter; only the fingerprint reaches the logger.
func Identify(ir *IdentityResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := ir.ClientID(r)
			fp := ir.Fingerprint(id)
			ctx := context.WithValue(r.Context(), clientIDKey{}, id)
			ctx = obsctx.ContextWithClientFingerprint(ctx, fp)
			ctx = obsctx.ContextWithLogger(ctx, obsctx.LoggerFromContext(ctx).With(slog.String("client_fingerprint", fp)))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
