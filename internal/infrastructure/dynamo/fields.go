package dynamo

// DynamoDB attribute names used in update expressions across all repos.
// Using constants prevents silent runtime bugs caused by key typos.
const (
	fieldEnable            = "enable"
	fieldUpdatedAt         = "updated_at"
	fieldRefreshToken      = "refresh_token"
	fieldRefreshExpiresAt  = "refresh_expires_at"
	fieldAttemptsRemaining = "attempts_remaining"
)

// Key attribute names.
const (
	keyUserID    = "user_id"
	keySessionID = "session_id"
	keyEmail     = "email"
	keyPurpose   = "purpose"
)

// Secondary index names.
const (
	indexEmail        = "email-index"
	indexUserID       = "user_id-index"
	indexRefreshToken = "refresh_token-index"
)
