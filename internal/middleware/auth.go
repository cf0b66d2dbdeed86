package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type contextKey string

const (
	WidgetIDKey contextKey = "widget_id"
	TenantIDKey contextKey = "tenant_id"
)

var ErrInvalidWidgetToken = errors.New("invalid widget token")

// WidgetAuth issues and checks widget session tokens. A token is a handle on
// one mounted widget; it says nothing about who is typing.
type WidgetAuth struct {
	Secret []byte
	TTL    time.Duration
}

func NewWidgetAuth(secret string, ttl time.Duration) *WidgetAuth {
	return &WidgetAuth{Secret: []byte(secret), TTL: ttl}
}

// GenerateToken creates an HS256 token bound to a widget and its tenant.
func (a *WidgetAuth) GenerateToken(widgetID uuid.UUID, tenantID string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"widget_id": widgetID.String(),
		"tenant_id": tenantID,
		"iat":       now.Unix(),
	}
	if a.TTL > 0 {
		claims["exp"] = now.Add(a.TTL).Unix()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.Secret)
}

// ParseToken validates a token and returns the widget and tenant it names.
func (a *WidgetAuth) ParseToken(tokenStr string) (uuid.UUID, string, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return a.Secret, nil
	})
	if err != nil {
		return uuid.Nil, "", err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return uuid.Nil, "", ErrInvalidWidgetToken
	}

	widgetIDStr, _ := claims["widget_id"].(string)
	widgetID, err := uuid.Parse(widgetIDStr)
	if err != nil {
		return uuid.Nil, "", ErrInvalidWidgetToken
	}
	tenantID, _ := claims["tenant_id"].(string)
	return widgetID, tenantID, nil
}

// Middleware requires a Bearer widget token and attaches its claims to the
// request context.
func (a *WidgetAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing authorization header", r)
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid authorization format", r)
			return
		}

		widgetID, tenantID, err := a.ParseToken(parts[1])
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				writeError(w, http.StatusUnauthorized, "TOKEN_EXPIRED", "Token has expired", r)
			} else {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid token", r)
			}
			return
		}

		ctx := context.WithValue(r.Context(), WidgetIDKey, widgetID)
		ctx = context.WithValue(ctx, TenantIDKey, tenantID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetWidgetID extracts the token's widget ID from the request context.
func GetWidgetID(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(WidgetIDKey).(uuid.UUID)
	return id
}

func GetTenantID(ctx context.Context) string {
	id, _ := ctx.Value(TenantIDKey).(string)
	return id
}

func writeError(w http.ResponseWriter, status int, code, message string, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]interface{}{
			"code":       code,
			"message":    message,
			"request_id": requestID,
		},
	})
}
