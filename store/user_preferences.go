package store

// UserPreferences represents per-user relay settings.
type UserPreferences struct {
	UserID string
	// TranscriptSharing mirrors prompts and replies to the event bus when set.
	TranscriptSharing bool
	CreatedTs         int64
	UpdatedTs         int64
}

// FindUserPreferences specifies the conditions for finding user preferences.
type FindUserPreferences struct {
	UserID *string
}

// UpsertUserPreferences specifies the data for upserting user preferences.
type UpsertUserPreferences struct {
	UserID            string
	TranscriptSharing bool
}
