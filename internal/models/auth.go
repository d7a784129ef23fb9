package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// JWTClaims represents the JWT payload of access tokens issued by the identity service.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	Role     UserRole `json:"role"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	jwt.RegisteredClaims
}

// Actor is the authenticated identity performing an operation.
type Actor struct {
	ID       string
	Role     UserRole
	FullName string
}

// IsStaff reports whether the actor is municipal staff.
func (a Actor) IsStaff() bool {
	return a.Role.IsStaff()
}

// ActorFromClaims projects token claims onto an Actor.
func ActorFromClaims(claims *JWTClaims) Actor {
	if claims == nil {
		return Actor{}
	}
	return Actor{ID: claims.UserID, Role: claims.Role, FullName: claims.FullName}
}
