package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// SessionCookie carries the session token for browser clients.
const SessionCookie = "lensdesk_session"

type tokenKey struct{}

// withToken stores the caller's session token in ctx.
func withToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

// tokenFrom returns the token stored by TokenMiddleware or TokenInterceptor.
func tokenFrom(ctx context.Context) string {
	tok, _ := ctx.Value(tokenKey{}).(string)
	return tok
}

// bearer extracts the token from an "authorization" header value.
// Anything other than the Bearer scheme yields "".
func bearer(header string) string {
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

// LoggingInterceptor logs the method name, duration, and error (if any) for every
// unary RPC call.
func LoggingInterceptor(
	ctx context.Context,
	req any,
	info *grpc.UnaryServerInfo,
	handler grpc.UnaryHandler,
) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	duration := time.Since(start)

	if err != nil {
		slog.Error("rpc completed",
			"method", info.FullMethod,
			"duration", duration,
			"error", err,
		)
	} else {
		slog.Info("rpc completed",
			"method", info.FullMethod,
			"duration", duration,
		)
	}

	return resp, err
}

// RecoveryInterceptor catches panics in downstream handlers, logs the stack
// trace, and returns a codes.Internal error instead of crashing the server.
func RecoveryInterceptor(
	ctx context.Context,
	req any,
	info *grpc.UnaryServerInfo,
	handler grpc.UnaryHandler,
) (resp any, err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic recovered in gRPC handler",
				"method", info.FullMethod,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
			err = status.Errorf(codes.Internal, "internal server error")
		}
	}()
	return handler(ctx, req)
}

// TokenInterceptor copies a Bearer token from the "authorization" metadata
// into the request context. It never rejects a call: access decisions are
// made by the gate each service runs. A malformed scheme is refused so
// clients notice misconfiguration.
func TokenInterceptor(
	ctx context.Context,
	req any,
	_ *grpc.UnaryServerInfo,
	handler grpc.UnaryHandler,
) (any, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return handler(ctx, req)
	}
	vals := md.Get("authorization")
	if len(vals) == 0 {
		return handler(ctx, req)
	}
	tok := bearer(vals[0])
	if tok == "" {
		return nil, status.Error(codes.Unauthenticated, "invalid authorization scheme")
	}
	return handler(withToken(ctx, tok), req)
}

// TokenMiddleware resolves the caller's session token from the Authorization
// header, falling back to the session cookie, and stores it in the request
// context. Like TokenInterceptor it only extracts; the route's gate decides.
func TokenMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var tok string
		if h := r.Header.Get("Authorization"); h != "" {
			tok = bearer(h)
			if tok == "" {
				writeError(w, http.StatusUnauthorized, "invalid authorization scheme")
				return
			}
		} else if c, err := r.Cookie(SessionCookie); err == nil {
			tok = c.Value
		}
		if tok != "" {
			r = r.WithContext(withToken(r.Context(), tok))
		}
		next.ServeHTTP(w, r)
	})
}

// RecoveryMiddleware is the HTTP counterpart of RecoveryInterceptor.
func RecoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				slog.Error("panic recovered in HTTP handler",
					"method", r.Method,
					"path", r.URL.Path,
					"panic", fmt.Sprintf("%v", rec),
					"stack", string(debug.Stack()),
				)
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}
