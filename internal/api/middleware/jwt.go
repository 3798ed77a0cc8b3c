package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/yoockh/yoocv/internal/models"
	"github.com/yoockh/yoocv/internal/utils"
)

// PrincipalKey is the gin context key holding the authenticated models.Principal.
const PrincipalKey = "principal"

type JWTOptions struct {
	Secret   string
	Issuer   string // optional
	Audience string // optional
}

type tokenClaims struct {
	jwt.RegisteredClaims
	Role        string         `json:"role"`
	AppMetadata map[string]any `json:"app_metadata"` // {"role":"admin"} grants the admin view
}

func (c *tokenClaims) appRole() models.UserRole {
	if c.AppMetadata != nil {
		if s, ok := c.AppMetadata["role"].(string); ok && strings.EqualFold(s, string(models.RoleAdmin)) {
			return models.RoleAdmin
		}
	}
	if strings.EqualFold(c.Role, string(models.RoleAdmin)) {
		return models.RoleAdmin
	}
	return models.RoleUser
}

func unauthorized(c *gin.Context, msg string) {
	AbortWithError(c, utils.E(utils.CodeUnauthorized, "middleware.JWTAuth", msg, nil))
}

func JWTAuth(opts JWTOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		if opts.Secret == "" {
			AbortWithError(c, utils.E(utils.CodeInternal, "middleware.JWTAuth", "JWT_SECRET is not set", nil))
			return
		}

		raw := bearerToken(c)
		if raw == "" {
			unauthorized(c, "missing bearer token")
			return
		}

		claims := &tokenClaims{}
		tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
			return []byte(opts.Secret), nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || tok == nil || !tok.Valid {
			unauthorized(c, "invalid token")
			return
		}

		if opts.Issuer != "" && claims.Issuer != opts.Issuer {
			unauthorized(c, "invalid token issuer")
			return
		}
		if opts.Audience != "" {
			valid := false
			for _, aud := range claims.Audience {
				if aud == opts.Audience {
					valid = true
					break
				}
			}
			if !valid {
				unauthorized(c, "invalid token audience")
				return
			}
		}

		if claims.Subject == "" {
			unauthorized(c, "missing subject")
			return
		}

		p := models.Principal{UserID: claims.Subject, Role: claims.appRole()}
		c.Set(PrincipalKey, p)
		c.Set("user_id", p.UserID)
		c.Set("role", string(p.Role))
		c.Next()
	}
}

// bearerToken reads the Authorization header, falling back to ?access_token=
// for browser WebSocket and EventSource clients that cannot set headers.
func bearerToken(c *gin.Context) string {
	if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return strings.TrimSpace(c.Query("access_token"))
}
