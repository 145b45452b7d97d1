package middleware

import (
	"strings"

	"partsreserve/internal/model"
	"partsreserve/pkg/apperror"
	"partsreserve/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const actorKey = "actor"

// Authenticate validates the bearer token (or the access_token cookie) and
// stores the caller identity on the context.
func Authenticate(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Try cookie first, fallback to Authorization header
		tokenString, cookieErr := c.Cookie("access_token")
		if cookieErr != nil || tokenString == "" {
			authHeader := c.GetHeader("Authorization")
			if authHeader == "" {
				abort(c, apperror.Unauthorized("authorization is missing"))
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				abort(c, apperror.Unauthorized("invalid authorization format, expected 'Bearer <token>'"))
				return
			}
			tokenString = parts[1]
		}

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return secret, nil
		})
		if err != nil || !token.Valid {
			abort(c, apperror.Unauthorized("invalid token"))
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			abort(c, apperror.Unauthorized("invalid token claims"))
			return
		}

		actor, err := actorFromClaims(claims)
		if err != nil {
			abort(c, err)
			return
		}

		c.Set(actorKey, actor)
		c.Set("userID", actor.UserID.String())

		c.Next()
	}
}

// RequireRole must run after Authenticate.
func RequireRole(allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := ActorFrom(c)
		if !ok {
			abort(c, apperror.Unauthorized("authorization is missing"))
			return
		}

		for _, role := range allowedRoles {
			if actor.Role == role {
				c.Next()
				return
			}
		}

		abort(c, apperror.Forbidden("access denied: insufficient permissions"))
	}
}

// ActorFrom returns the identity stored by Authenticate.
func ActorFrom(c *gin.Context) (model.Actor, bool) {
	v, ok := c.Get(actorKey)
	if !ok {
		return model.Actor{}, false
	}
	actor, ok := v.(model.Actor)
	return actor, ok
}

func actorFromClaims(claims jwt.MapClaims) (model.Actor, error) {
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return model.Actor{}, apperror.Unauthorized("token has no subject")
	}
	userID, err := uuid.Parse(sub)
	if err != nil {
		return model.Actor{}, apperror.Unauthorized("token subject is not a valid id")
	}

	role, _ := claims["role"].(string)
	switch role {
	case model.RoleAdmin, model.RoleCustomer:
	default:
		return model.Actor{}, apperror.Forbidden("role not found in token")
	}

	approval, _ := claims["approval_status"].(string)
	if approval == "" && role == model.RoleAdmin {
		approval = model.ApprovalStatusApproved
	}
	tier, _ := claims["customer_tier"].(string)
	if tier != model.TierWholesale {
		tier = model.TierRetail
	}

	return model.Actor{
		UserID:         userID,
		Role:           role,
		ApprovalStatus: approval,
		CustomerTier:   tier,
	}, nil
}

func abort(c *gin.Context, err error) {
	status, body := response.FromError(err)
	c.AbortWithStatusJSON(status, body)
}
