package enums

import "fmt"

// EmployeeRole maps organisational roles onto API permissions.
type EmployeeRole string

const (
	RoleAdmin   EmployeeRole = "admin"
	RoleSales   EmployeeRole = "sales"
	RolePlanner EmployeeRole = "planner"
)

var validEmployeeRoles = []EmployeeRole{
	RoleAdmin,
	RoleSales,
	RolePlanner,
}

// IsValid reports whether the value matches a known role.
func (r EmployeeRole) IsValid() bool {
	for _, candidate := range validEmployeeRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseEmployeeRole converts raw input into EmployeeRole.
func ParseEmployeeRole(value string) (EmployeeRole, error) {
	for _, candidate := range validEmployeeRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid employee role %q", value)
}
