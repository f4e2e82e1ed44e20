package approval

// StaticAuthorizer validates credentials against an in-memory table. It
// stands in for a real identity provider in the simulation.
type StaticAuthorizer struct {
	table map[Role]Credentials
}

// DefaultCredentials is the simulation's documented credential set.
func DefaultCredentials() map[Role]Credentials {
	return map[Role]Credentials{
		RoleSupervisor:    {Username: "supervisor", Password: "super123"},
		RoleRecipeManager: {Username: "recipe_manager", Password: "recipe123"},
	}
}

// NewStaticAuthorizer builds an authorizer over the given table. A nil table
// uses DefaultCredentials.
func NewStaticAuthorizer(table map[Role]Credentials) *StaticAuthorizer {
	if table == nil {
		table = DefaultCredentials()
	}
	return &StaticAuthorizer{table: table}
}

// Authorize implements Authorizer. Unknown roles always fail.
func (a *StaticAuthorizer) Authorize(role Role, creds Credentials) bool {
	want, ok := a.table[role]
	return ok && creds == want
}
