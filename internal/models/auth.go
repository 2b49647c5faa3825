package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims are the JWT claims carried by an operator session token.
type SessionClaims struct {
	Type     string `json:"type"`
	Operator string `json:"operator"`
	jwt.RegisteredClaims
}
