package models

// UserRole is the app-level role carried in Supabase app_metadata.role.
type UserRole string

const (
	RoleUser  UserRole = "user"
	RoleAdmin UserRole = "admin"
)
