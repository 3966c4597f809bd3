package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	RoleAdmin   = "ADMIN"
	RoleStudent = "STUDENT"

	accessTokenCookie = "access_token"
	principalKey      = "principal"
)

// Principal is the authenticated caller.
type Principal struct {
	UserID uuid.UUID
	Name   string
	Role   string
}

type Claims struct {
	Name string `json:"name"`
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Authenticate accepts an HS256 token from the access_token cookie or an
// Authorization: Bearer header.
func Authenticate(secret string) gin.HandlerFunc {
	key := []byte(secret)
	return func(c *gin.Context) {
		token, _ := c.Cookie(accessTokenCookie)
		if token == "" {
			if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
				token = strings.TrimPrefix(auth, "Bearer ")
			}
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}

		p, err := parseToken(token, key)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(principalKey, p)
		c.Next()
	}
}

// RequireRole rejects callers whose role is not one of roles.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := CurrentPrincipal(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}
		for _, r := range roles {
			if p.Role == r {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	}
}

func CurrentPrincipal(c *gin.Context) (Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return Principal{}, false
	}
	p, ok := v.(Principal)
	return p, ok
}

func parseToken(raw string, key []byte) (Principal, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		return key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return Principal{}, err
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return Principal{}, errors.New("subject is not a user id")
	}
	if claims.Role != RoleAdmin && claims.Role != RoleStudent {
		return Principal{}, errors.New("unknown role")
	}
	return Principal{UserID: id, Name: claims.Name, Role: claims.Role}, nil
}

// IssueToken signs a token for p. Used by tests and local tooling.
func IssueToken(secret string, p Principal, claims jwt.RegisteredClaims) (string, error) {
	claims.Subject = p.UserID.String()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{Name: p.Name, Role: p.Role, RegisteredClaims: claims})
	return token.SignedString([]byte(secret))
}
