package service

// AuthEvent names an outcome worth counting.
type AuthEvent string

const (
	EventRegister          AuthEvent = "register"
	EventLogin             AuthEvent = "login"
	EventOAuthLogin        AuthEvent = "oauth_login"
	EventRefresh           AuthEvent = "refresh"
	EventLogout            AuthEvent = "logout"
	EventEmailVerified     AuthEvent = "email_verified"
	EventVerificationSent  AuthEvent = "verification_sent"
	EventPasswordResetSent AuthEvent = "password_reset_sent"
	EventPasswordReset     AuthEvent = "password_reset"
)

// AuthEventRecorder records auth outcomes.
type AuthEventRecorder interface {
	Record(event AuthEvent, success bool)
}
