// Package gate decides, for every inbound request, whether the caller may proceed
// or must be redirected, given the request path and the resolved session.
//
// Decide is a pure function: session resolution happens before it runs and
// nothing here reads request state, cookies or the clock.
package gate

import (
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/plugcu/backend/internal/models"
)

// Canonical redirect targets.
const (
	LoginPath     = "/auth/login"
	DashboardPath = "/dashboard"
)

// Session is the caller identity resolved by the identity provider.
// A nil *Session means no session.
type Session struct {
	IdentityID uuid.UUID
	Email      string
	Role       models.Role
}

// Class is the protection class of a route.
type Class int

const (
	// ClassPublic routes are unprotected.
	ClassPublic Class = iota
	// ClassAuth routes are the login/signup/callback surface.
	ClassAuth
	// ClassRole routes require one specific role.
	ClassRole
	// ClassAuthenticated routes require any identity.
	ClassAuthenticated
)

// Reason explains why a request was redirected.
type Reason int

const (
	ReasonNone Reason = iota
	// ReasonUnauthenticated: protected route, no session.
	ReasonUnauthenticated
	// ReasonUnauthorized: role-scoped route, different role.
	ReasonUnauthorized
	// ReasonAlreadyAuthenticated: auth route, session present.
	ReasonAlreadyAuthenticated
)

func (r Reason) String() string {
	switch r {
	case ReasonUnauthenticated:
		return "unauthenticated"
	case ReasonUnauthorized:
		return "unauthorized"
	case ReasonAlreadyAuthenticated:
		return "already_authenticated"
	default:
		return "none"
	}
}

// Decision is the outcome of Decide. RedirectTo is empty when Allow is true.
type Decision struct {
	Allow      bool
	RedirectTo string
	Reason     Reason
}

// Rule classifies every path equal to Prefix or below it.
type Rule struct {
	Prefix string
	Class  Class
	Role   models.Role // only for ClassRole
}

// Routes is the route table, most specific prefix first. The first matching rule wins.
var Routes = []Rule{
	{Prefix: "/auth", Class: ClassAuth},
	{Prefix: "/dashboard/org", Class: ClassRole, Role: models.RoleOrg},
	{Prefix: "/api/org", Class: ClassRole, Role: models.RoleOrg},
	{Prefix: "/dashboard/brand", Class: ClassRole, Role: models.RoleBrand},
	{Prefix: "/api/brand", Class: ClassRole, Role: models.RoleBrand},
	{Prefix: "/dashboard/admin", Class: ClassRole, Role: models.RoleAdmin},
	{Prefix: "/api/admin", Class: ClassRole, Role: models.RoleAdmin},
	{Prefix: "/dashboard", Class: ClassAuthenticated},
	{Prefix: "/api", Class: ClassAuthenticated},
	{Prefix: "/ws", Class: ClassAuthenticated},
}

// Classify returns the rule governing path. Paths matching no rule are ClassPublic.
func Classify(p string) Rule {
	p = normalize(p)
	for _, r := range Routes {
		if p == r.Prefix || strings.HasPrefix(p, r.Prefix+"/") {
			return r
		}
	}
	return Rule{Prefix: "", Class: ClassPublic}
}

// Decide returns whether the request may proceed or where it must be redirected.
func Decide(p string, session *Session) Decision {
	rule := Classify(p)
	switch rule.Class {
	case ClassAuth:
		if session != nil {
			return redirect(DashboardPath, ReasonAlreadyAuthenticated)
		}
	case ClassRole:
		if session == nil {
			return redirect(LoginPath, ReasonUnauthenticated)
		}
		if models.ParseRole(string(session.Role)) != rule.Role {
			return redirect(DashboardPath, ReasonUnauthorized)
		}
	case ClassAuthenticated:
		if session == nil {
			return redirect(LoginPath, ReasonUnauthenticated)
		}
	}
	return Decision{Allow: true}
}

// HomeFor returns the dashboard home of role. Unknown roles get the org home.
func HomeFor(role models.Role) string {
	switch models.ParseRole(string(role)) {
	case models.RoleBrand:
		return "/dashboard/brand"
	case models.RoleAdmin:
		return "/dashboard/admin"
	default:
		return "/dashboard/org"
	}
}

func redirect(target string, reason Reason) Decision {
	return Decision{RedirectTo: target, Reason: reason}
}

// normalize cleans dot segments and trailing slashes so "/dashboard/x/../admin"
// is classified as "/dashboard/admin".
func normalize(p string) string {
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}
