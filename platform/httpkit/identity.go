package httpkit

import (
	"slices"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Actor is the caller that AuthRequired let through.
type Actor struct {
	UserID uuid.UUID
	Roles  []string
}

func (a Actor) HasRole(role string) bool {
	return slices.Contains(a.Roles, role)
}

// CurrentActor returns the authenticated caller and false for public routes
// such as provider webhooks.
func CurrentActor(c *gin.Context) (Actor, bool) {
	raw, ok := c.Get(ContextUserIDKey)
	if !ok {
		return Actor{}, false
	}
	userID, ok := raw.(uuid.UUID)
	if !ok {
		return Actor{}, false
	}
	roles, _ := c.Get(ContextRolesKey)
	list, _ := roles.([]string)
	return Actor{UserID: userID, Roles: list}, true
}

// ActorID is the id recorded as the creator of a campaign job, nil when anonymous.
func ActorID(c *gin.Context) *uuid.UUID {
	actor, ok := CurrentActor(c)
	if !ok {
		return nil
	}
	return &actor.UserID
}
