package store

// UserThread maps a user identity to the remote assistant thread of that user.
type UserThread struct {
	UserID    string
	ThreadID  string
	CreatedTs int64
	UpdatedTs int64
}

// FindUserThread specifies the conditions for finding a user thread.
type FindUserThread struct {
	UserID *string
}

// UpsertUserThread specifies the data for upserting a user thread.
type UpsertUserThread struct {
	UserID   string
	ThreadID string
}
