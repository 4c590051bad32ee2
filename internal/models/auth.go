package models

import "github.com/golang-jwt/jwt/v5"

// UserRole enumerates the roles the timetable API distinguishes. Account
// management itself lives in another service; only the role matters here.
type UserRole string

const (
	RoleAdmin     UserRole = "ADMIN"
	RoleScheduler UserRole = "SCHEDULER"
	RoleTeacher   UserRole = "TEACHER"
	RoleStudent   UserRole = "STUDENT"
)

// JWTClaims represents the JWT payload for access tokens issued by the
// accounts service. UserID doubles as the actor reference on change records.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	Role     UserRole `json:"role"`
	FullName string   `json:"full_name"`
	jwt.RegisteredClaims
}
