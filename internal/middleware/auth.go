package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"paperpayout-client/internal/services"
)

const ViewerKey = "viewer_id"

var (
	errBadScheme    = errors.New("invalid authorization format")
	errMissingToken = errors.New("authorization header required")
)

// authFailures is the response text for each token extraction error.
var authFailures = map[error]string{
	errBadScheme:    "Invalid authorization format",
	errMissingToken: "Authorization header required",
}

// AuthMiddleware guards the view API with a bearer token when a secret is
// configured. Browsers opening the websocket pass it as ?token=.
func AuthMiddleware(jwtService *services.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !jwtService.Enabled() {
			c.Next()
			return
		}

		token, err := viewToken(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": authFailures[err]})
			return
		}

		claims, err := jwtService.ValidateToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		c.Set(ViewerKey, claims.ViewerID)
		c.Next()
	}
}

func viewToken(c *gin.Context) (string, error) {
	header := c.GetHeader("Authorization")
	if header == "" {
		if t := c.Query("token"); t != "" {
			return t, nil
		}
		return "", errMissingToken
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || scheme != "Bearer" || token == "" {
		return "", errBadScheme
	}
	return token, nil
}
