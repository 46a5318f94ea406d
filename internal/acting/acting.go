// Package acting describes who is performing a request: the authenticated
// actor, their current roles and, while impersonating, the tenant they act as.
package acting

import (
	"slices"

	"github.com/gofiber/fiber/v2"
	"github.com/onsell/backoffice/model"
)

const contextKey = "acting"

type TenantType string

const (
	TenantAgency TenantType = "agency"
	TenantClient TenantType = "client"
)

func (t TenantType) Valid() bool {
	return t == TenantAgency || t == TenantClient
}

// TransientRole is the role granted to an actor for the duration of an
// impersonation of this tenant type.
func (t TenantType) TransientRole() string {
	if t == TenantAgency {
		return model.RoleAgencyOwner
	}
	return model.RoleClientUser
}

type OriginalUser struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

type Target struct {
	ID   uint       `json:"id"`
	Name string     `json:"name"`
	Type TenantType `json:"type"`
}

// Impersonation is the state kept in the session while an actor acts as a
// tenant. The zero value means no impersonation.
type Impersonation struct {
	OriginalUser OriginalUser `json:"original_user"`
	Target       Target       `json:"target"`
}

func (i Impersonation) Active() bool {
	return i.Target.ID != 0
}

type Context struct {
	ActorID       uint
	ActorName     string
	Email         string
	Roles         []string
	AgencyID      *uint
	ClientID      *uint
	Impersonation *Impersonation
	IP            string
}

func (c *Context) HasRole(role string) bool {
	return slices.Contains(c.Roles, role)
}

func (c *Context) HasAnyRole(roles ...string) bool {
	for _, r := range roles {
		if c.HasRole(r) {
			return true
		}
	}
	return false
}

func (c *Context) IsImpersonating() bool {
	return c.Impersonation != nil && c.Impersonation.Active()
}

func (c *Context) PrimaryRole() string {
	return PrimaryRole(c.Roles)
}

// PrimaryRole picks the highest role of roles: admin, then agency owner, then
// client user. It returns "" when none of them is held.
func PrimaryRole(roles []string) string {
	for _, r := range []string{model.RoleAdmin, model.RoleAgencyOwner, model.RoleClientUser} {
		if slices.Contains(roles, r) {
			return r
		}
	}
	return ""
}

func DashboardFor(role string) string {
	switch role {
	case model.RoleAdmin:
		return "/admin/dashboard"
	case model.RoleAgencyOwner:
		return "/agency/dashboard"
	case model.RoleClientUser:
		return "/client/dashboard"
	default:
		return "/"
	}
}

func With(ctx *fiber.Ctx, ac *Context) {
	ctx.Locals(contextKey, ac)
}

// From returns the acting context of the request, or nil for anonymous
// requests.
func From(ctx *fiber.Ctx) *Context {
	ac, _ := ctx.Locals(contextKey).(*Context)
	return ac
}
