package auth

import "github.com/golang-jwt/jwt/v5"

// InterviewerClaims is the token payload issued at login and verified by
// the dashboard middleware. Role gates the admin-only routes.
type InterviewerClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Role  string `json:"role"`
}
