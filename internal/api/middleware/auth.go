package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/orrn/rprint/internal/logger"
)

const (
	ContextClientID = "client_id"
	ContextWorkerID = "worker_id"

	workerScheme = "Worker "
)

// Claims are issued by the account service. The subject is the client id.
type Claims struct {
	jwt.RegisteredClaims
}

type ClientAuth struct {
	secret []byte
}

func NewClientAuth(secret string) *ClientAuth {
	return &ClientAuth{secret: []byte(secret)}
}

func (a *ClientAuth) validateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		if claims.Subject == "" {
			return nil, errors.New("token has no subject")
		}
		return claims, nil
	}

	return nil, errors.New("invalid token")
}

func getTokenFromRequest(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	}
	return ""
}

// RequireClient authenticates end clients with an HS256 bearer token.
func (a *ClientAuth) RequireClient() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := getTokenFromRequest(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "message": "Authentication required"})
			return
		}

		claims, err := a.validateToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "message": "Invalid or expired token"})
			return
		}

		c.Set(ContextClientID, claims.Subject)
		withLogField(c, "client_id", claims.Subject)
		c.Next()
	}
}

// CredentialVerifier resolves a worker credential to a worker id.
type CredentialVerifier interface {
	Authenticate(ctx context.Context, credential string) (string, error)
}

// RequireWorker authenticates workers sending
// "Authorization: Worker <worker-id>.<secret>".
func RequireWorker(v CredentialVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, workerScheme) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "message": "Worker credential required"})
			return
		}

		workerID, err := v.Authenticate(c.Request.Context(), strings.TrimSpace(strings.TrimPrefix(header, workerScheme)))
		if err != nil {
			logger.FromContext(c.Request.Context()).Debug().Err(err).Msg("worker authentication failed")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "message": "Invalid worker credential"})
			return
		}

		c.Set(ContextWorkerID, workerID)
		withLogField(c, "worker_id", workerID)
		c.Next()
	}
}

func ClientID(c *gin.Context) string {
	return c.GetString(ContextClientID)
}

func WorkerID(c *gin.Context) string {
	return c.GetString(ContextWorkerID)
}

func withLogField(c *gin.Context, key, value string) {
	ctx := c.Request.Context()
	l := logger.FromContext(ctx).With().Str(key, value).Logger()
	c.Request = c.Request.WithContext(logger.WithContext(ctx, l))
}
