package shared

// Core access-management permissions.
const (
	PermPrincipalsView = "principals.view"
	PermPrincipalsEdit = "principals.edit"

	PermRolesView = "roles.view"
	PermRolesEdit = "roles.edit"

	PermAssignmentsView = "assignments.view"
	PermAssignmentsEdit = "assignments.edit"
)

// CoreScopes lists all permissions owned by the access core.
func CoreScopes() []string {
	return []string{
		PermPrincipalsView,
		PermPrincipalsEdit,
		PermRolesView,
		PermRolesEdit,
		PermAssignmentsView,
		PermAssignmentsEdit,
	}
}
