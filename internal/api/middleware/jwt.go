package middleware

import (
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/yoockh/casecoach/internal/models"
	"github.com/yoockh/casecoach/internal/utils"
)

type apiError struct {
	Code    utils.Code `json:"code"`
	Message string     `json:"message"`
}

type supabaseClaims struct {
	jwt.RegisteredClaims
	Email        string         `json:"email"`
	Role         string         `json:"role"`         // "authenticated" / "anon"
	AppMetadata  map[string]any `json:"app_metadata"` // {"role":"admin"} for admins
	UserMetadata map[string]any `json:"user_metadata"`
}

// appRole is the role the app authorizes on; Supabase's own role claim only
// says whether the user is signed in.
func (c *supabaseClaims) appRole() models.UserRole {
	if s, ok := c.AppMetadata["role"].(string); ok && s != "" {
		return models.UserRole(s)
	}
	return models.RoleUser
}

// check returns a client-facing reason when the claims are not acceptable.
func (c *supabaseClaims) check(issuer, audience string) string {
	switch {
	case issuer != "" && c.Issuer != issuer:
		return "invalid token issuer"
	case audience != "" && !slices.Contains(c.Audience, audience):
		return "invalid token audience"
	case c.Subject == "":
		return "missing subject"
	}
	return ""
}

func deny(c *gin.Context, status int, code utils.Code, msg string) {
	c.AbortWithStatusJSON(status, apiError{Code: code, Message: msg})
}

// JWTAuth verifies HS256 Supabase access tokens and sets user_id, role and
// email on the context. issuer and audience are checked only when set.
func JWTAuth(secret, issuer, audience string) gin.HandlerFunc {
	keyFunc := func(*jwt.Token) (any, error) { return []byte(secret), nil }
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	return func(c *gin.Context) {
		if secret == "" {
			deny(c, http.StatusInternalServerError, utils.CodeInternal, "SUPABASE_JWT_SECRET is not set")
			return
		}

		raw, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		raw = strings.TrimSpace(raw)
		if !ok || raw == "" {
			deny(c, http.StatusUnauthorized, utils.CodeUnauthorized, "missing bearer token")
			return
		}

		claims := &supabaseClaims{}
		tok, err := parser.ParseWithClaims(raw, claims, keyFunc)
		if err != nil || !tok.Valid {
			deny(c, http.StatusUnauthorized, utils.CodeUnauthorized, "invalid token")
			return
		}
		if reason := claims.check(issuer, audience); reason != "" {
			deny(c, http.StatusUnauthorized, utils.CodeUnauthorized, reason)
			return
		}

		c.Set("user_id", claims.Subject)
		c.Set("role", string(claims.appRole()))
		if claims.Email != "" {
			c.Set("email", claims.Email)
		}
		c.Next()
	}
}
