package gate

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/plugcu/backend/internal/models"
)

func session(role models.Role) *Session {
	return &Session{IdentityID: uuid.New(), Email: "someone@example.com", Role: role}
}

var protectedPaths = []string{
	"/dashboard",
	"/dashboard/",
	"/dashboard/org",
	"/dashboard/org/events/new",
	"/dashboard/brand/matches",
	"/dashboard/admin",
	"/api/threads",
	"/api/org/profile",
	"/api/brand/events",
	"/api/admin/users",
	"/ws/threads/abc",
}

func TestDecideIsPure(t *testing.T) {
	s := session(models.RoleBrand)
	for _, p := range append(protectedPaths, "/", "/auth/login", "/health") {
		assert.Equal(t, Decide(p, s), Decide(p, s), p)
		assert.Equal(t, Decide(p, nil), Decide(p, nil), p)
	}
}

func TestDecideFailsClosedWithoutSession(t *testing.T) {
	for _, p := range protectedPaths {
		d := Decide(p, nil)
		assert.False(t, d.Allow, p)
		assert.Equal(t, LoginPath, d.RedirectTo, p)
		assert.Equal(t, ReasonUnauthenticated, d.Reason, p)
	}
}

func TestDecideRoleIsolation(t *testing.T) {
	scoped := map[models.Role][]string{
		models.RoleOrg:   {"/dashboard/org", "/dashboard/org/profile", "/api/org/events"},
		models.RoleBrand: {"/dashboard/brand", "/dashboard/brand/discover", "/api/brand/matches"},
		models.RoleAdmin: {"/dashboard/admin", "/api/admin/orgs/1/status"},
	}
	roles := []models.Role{models.RoleOrg, models.RoleBrand, models.RoleAdmin}
	for owner, paths := range scoped {
		for _, role := range roles {
			for _, p := range paths {
				d := Decide(p, session(role))
				if role == owner {
					assert.True(t, d.Allow, "%s as %s", p, role)
					continue
				}
				assert.Equal(t, Decision{RedirectTo: DashboardPath, Reason: ReasonUnauthorized}, d, "%s as %s", p, role)
			}
		}
	}
}

func TestDecideBouncesAuthRoutes(t *testing.T) {
	for _, role := range []models.Role{models.RoleOrg, models.RoleBrand, models.RoleAdmin} {
		for _, p := range []string{"/auth/login", "/auth/signup", "/auth/callback", "/auth"} {
			d := Decide(p, session(role))
			assert.Equal(t, Decision{RedirectTo: DashboardPath, Reason: ReasonAlreadyAuthenticated}, d, p)
		}
	}
	assert.True(t, Decide("/auth/login", nil).Allow)
}

func TestDecideAllowsAnyRoleOnSharedRoutes(t *testing.T) {
	for _, role := range []models.Role{models.RoleOrg, models.RoleBrand, models.RoleAdmin} {
		assert.True(t, Decide("/dashboard", session(role)).Allow)
		assert.True(t, Decide("/api/threads/1/messages", session(role)).Allow)
	}
}

func TestDecidePublicRoutes(t *testing.T) {
	for _, p := range []string{"/", "/health", "/logout", "/about", "/dashboards", "/authors"} {
		assert.Equal(t, Decision{Allow: true}, Decide(p, nil), p)
	}
}

func TestDecideUnknownRoleIsTreatedAsOrg(t *testing.T) {
	s := session(models.Role("superuser"))
	assert.True(t, Decide("/dashboard/org", s).Allow)
	assert.False(t, Decide("/dashboard/admin", s).Allow)
	assert.False(t, Decide("/dashboard/admin", session("")).Allow)
	assert.True(t, Decide("/dashboard/org", session("student_org")).Allow)
}

func TestClassifyIsSegmentAware(t *testing.T) {
	assert.Equal(t, ClassAuthenticated, Classify("/dashboard/organizations").Class)
	assert.Equal(t, ClassRole, Classify("/dashboard/org").Class)
	assert.Equal(t, models.RoleAdmin, Classify("/dashboard/org/../admin").Role)
	assert.Equal(t, ClassPublic, Classify("/apis").Class)
}

func TestHomeFor(t *testing.T) {
	assert.Equal(t, "/dashboard/org", HomeFor(models.RoleOrg))
	assert.Equal(t, "/dashboard/brand", HomeFor(models.RoleBrand))
	assert.Equal(t, "/dashboard/admin", HomeFor(models.RoleAdmin))
	assert.Equal(t, "/dashboard/org", HomeFor("unknown"))
}
