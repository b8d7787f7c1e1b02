package middleware

import (
	"context"
	"errors"
	"net/http"

	"quickpay-bridge/internal/auth"
	"quickpay-bridge/internal/logger"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

type contextKey string

const subjectKey contextKey = "jwtSubject"

const RoleAdmin = "admin"

// SubjectFromContext returns the "sub" claim of an authenticated admin.
func SubjectFromContext(ctx context.Context) (string, bool) {
	sub, ok := ctx.Value(subjectKey).(string)
	return sub, ok && sub != ""
}

// RequireAdmin rejects requests without a valid HS256 token carrying
// role=admin.
func RequireAdmin(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr := auth.ExtractAccessToken(r)
			if tokenStr == "" {
				http.Error(w, "missing token", http.StatusUnauthorized)
				return
			}

			claims := jwt.MapClaims{}
			token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
				return secret, nil
			}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
			if err != nil || !token.Valid || len(secret) == 0 {
				logger.FromCtx(r.Context()).Warn("Rejected admin token", zap.Error(tokenErr(err)))
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}

			if role, _ := claims["role"].(string); role != RoleAdmin {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}

			sub, _ := claims.GetSubject()
			ctx := context.WithValue(r.Context(), subjectKey, sub)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func tokenErr(err error) error {
	if err == nil {
		return errors.New("no signing secret configured")
	}
	return err
}
