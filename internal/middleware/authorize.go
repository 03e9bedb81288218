package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/edu-scheduling-api/internal/models"
	appErrors "github.com/noah-isme/edu-scheduling-api/pkg/errors"
	"github.com/noah-isme/edu-scheduling-api/pkg/response"
)

// Policy describes who may call an endpoint. An empty Roles list admits every role.
type Policy struct {
	Roles           []models.UserRole
	RequireVerified bool
}

// Allow returns a policy for roles.
func Allow(roles ...models.UserRole) Policy {
	return Policy{Roles: roles}
}

// Verified returns a copy of p that also demands a verified account.
func (p Policy) Verified() Policy {
	p.RequireVerified = true
	return p
}

func (p Policy) admits(claims *models.JWTClaims) error {
	if claims == nil {
		return appErrors.ErrUnauthorized
	}
	if len(p.Roles) > 0 {
		allowed := false
		for _, role := range p.Roles {
			if claims.Role == role {
				allowed = true
				break
			}
		}
		if !allowed {
			return appErrors.Clone(appErrors.ErrForbidden, "role not permitted for this action")
		}
	}
	if p.RequireVerified && !claims.Verified {
		return appErrors.Clone(appErrors.ErrForbidden, "account is not verified")
	}
	return nil
}

// Authorize enforces policy on the claims placed by JWT.
func Authorize(policy Policy) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := policy.admits(Claims(c)); err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}
		c.Next()
	}
}
