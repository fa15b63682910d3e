package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/taskdash/api/transport"
	"github.com/fastygo/taskdash/domain"
	"github.com/fastygo/taskdash/pkg/httpcontext"
	"github.com/fastygo/taskdash/pkg/token"
)

// TokenParser verifies access tokens. *token.Manager satisfies it.
type TokenParser interface {
	Parse(raw string) (*token.Claims, error)
}

// SessionChecker confirms a token's session is still live, so signing out
// revokes outstanding tokens.
type SessionChecker interface {
	GetSession(ctx context.Context, sessionID string) (*domain.Session, error)
}

// JWTAuth rejects requests without a valid bearer token and stores the
// caller's user and session ids as request user values.
func JWTAuth(tokens TokenParser, sessions SessionChecker, logger *zap.Logger) func(fasthttp.RequestHandler) fasthttp.RequestHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			raw := extractToken(ctx)
			if raw == "" {
				unauthorized(ctx, "missing bearer token")
				return
			}

			claims, err := tokens.Parse(raw)
			if err != nil {
				logger.Warn("invalid jwt token", zap.Error(err))
				unauthorized(ctx, "invalid token")
				return
			}

			if sessions != nil && claims.SessionID != "" {
				checkCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				session, err := sessions.GetSession(checkCtx, claims.SessionID)
				cancel()
				if err != nil {
					if domain.IsDomainError(err, domain.ErrCodeNotFound) {
						unauthorized(ctx, "session expired")
						return
					}
					// Store outage: the token's signature and expiry still hold, so
					// revocation lags by at most one token TTL.
					logger.Warn("session check unavailable", zap.Error(err))
				} else if session.UserID != claims.UserID {
					unauthorized(ctx, "invalid token")
					return
				}
			}

			ctx.SetUserValue(httpcontext.UserValueUserID, claims.UserID)
			ctx.SetUserValue(httpcontext.UserValueSessionID, claims.SessionID)
			next(ctx)
		}
	}
}

func unauthorized(ctx *fasthttp.RequestCtx, message string) {
	ctx.Response.Header.SetContentType("application/json")
	ctx.SetStatusCode(http.StatusUnauthorized)
	ctx.SetBodyString(transport.NewError(string(domain.ErrCodeUnauthorized), message, nil).String())
}

func extractToken(ctx *fasthttp.RequestCtx) string {
	header := strings.TrimSpace(string(ctx.Request.Header.Peek("Authorization")))
	if header == "" {
		return ""
	}
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return header
}
