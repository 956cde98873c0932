package auth

import (
	"github.com/golang-jwt/jwt/v5"

	"github.com/showrunr/eventcrm-backend/pkg/enums"
)

// AccessTokenPayload captures the data available when minting a JWT.
// EmployeeID is issued by the identity provider and treated as opaque.
type AccessTokenPayload struct {
	EmployeeID string
	Role       enums.EmployeeRole
	JTI        string
}

// AccessTokenClaims represents the typed JWT issued to clients.
type AccessTokenClaims struct {
	EmployeeID string             `json:"employee_id"`
	Role       enums.EmployeeRole `json:"role"`
	jwt.RegisteredClaims
}
