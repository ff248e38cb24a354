package httpkit

import (
	"slices"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Operator is the authenticated caller of a protected route.
type Operator struct {
	ID    uuid.UUID
	Roles []string
}

// Authenticated reports whether AuthRequired accepted a token for this request.
func (o Operator) Authenticated() bool {
	return o.ID != uuid.Nil
}

// HasAnyRole reports whether the operator holds at least one of roles.
func (o Operator) HasAnyRole(roles ...string) bool {
	for _, role := range roles {
		if slices.Contains(o.Roles, role) {
			return true
		}
	}
	return false
}

// GetOperator reads the identity AuthRequired stored on the context. The zero
// Operator is returned for unauthenticated requests.
func GetOperator(c *gin.Context) Operator {
	var op Operator
	if value, ok := c.Get(ContextUserIDKey); ok {
		op.ID, _ = value.(uuid.UUID)
	}
	if value, ok := c.Get(ContextRolesKey); ok {
		op.Roles, _ = value.([]string)
	}
	return op
}
