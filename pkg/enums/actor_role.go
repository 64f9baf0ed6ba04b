package enums

import "fmt"

// ActorRole identifies who triggered a mutation. Authentication itself is
// handled upstream; the core only requires a resolved identity and role.
type ActorRole string

const (
	ActorRoleSeller  ActorRole = "seller"
	ActorRoleAdmin   ActorRole = "admin"
	ActorRoleSystem  ActorRole = "system"
	ActorRoleWebhook ActorRole = "webhook"
)

// IsValid reports whether the value is a known ActorRole.
func (r ActorRole) IsValid() bool {
	switch r {
	case ActorRoleSeller, ActorRoleAdmin, ActorRoleSystem, ActorRoleWebhook:
		return true
	}
	return false
}

// ParseActorRole converts raw input into an ActorRole.
func ParseActorRole(value string) (ActorRole, error) {
	role := ActorRole(value)
	if !role.IsValid() {
		return "", fmt.Errorf("invalid actor role %q", value)
	}
	return role, nil
}
