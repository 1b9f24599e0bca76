package security

// Security audit event types.
const (
	EventClientRegistered            = "client_registered"
	EventAuthFailure                 = "auth_failure"
	EventAuthorizationCodeIssued     = "authorization_code_issued"
	EventAuthorizationCodeSuperseded = "authorization_code_superseded"
	EventTokenIssued                 = "token_issued"
	EventTokenRefreshed              = "token_refreshed"
	EventUserCreated                 = "user_created"
	EventRateLimited                 = "rate_limited"
)
