package auth

import (
	"github.com/golang-jwt/jwt/v5"

	"github.com/angelmondragon/printshop-backend/pkg/enums"
)

// OperatorTokenPayload is the input for minting an admin token.
type OperatorTokenPayload struct {
	Subject string
	Role    enums.OperatorRole
	JTI     string
}

// OperatorClaims is the typed JWT accepted by the admin routes.
type OperatorClaims struct {
	Role enums.OperatorRole `json:"role"`
	jwt.RegisteredClaims
}
