package store

import (
	"context"

	"github.com/pkg/errors"

	"github.com/hrygo/chatrelay/internal/profile"
)

// ErrNotFound is returned when no thread or preference is stored for a user.
var ErrNotFound = errors.New("not found")

// Store provides database access to all raw objects.
type Store struct {
	profile *profile.Profile
	driver  Driver
}

// New creates a new instance of Store.
func New(driver Driver, profile *profile.Profile) *Store {
	return &Store{
		driver:  driver,
		profile: profile,
	}
}

func (s *Store) GetDriver() Driver {
	return s.driver
}

func (s *Store) Close() error {
	return s.driver.Close()
}

func (s *Store) UpsertUserThread(ctx context.Context, upsert *UpsertUserThread) (*UserThread, error) {
	return s.driver.UpsertUserThread(ctx, upsert)
}

func (s *Store) GetUserThread(ctx context.Context, find *FindUserThread) (*UserThread, error) {
	return s.driver.GetUserThread(ctx, find)
}

func (s *Store) UpsertUserPreferences(ctx context.Context, upsert *UpsertUserPreferences) (*UserPreferences, error) {
	return s.driver.UpsertUserPreferences(ctx, upsert)
}

func (s *Store) GetUserPreferences(ctx context.Context, find *FindUserPreferences) (*UserPreferences, error) {
	return s.driver.GetUserPreferences(ctx, find)
}

// GetThreadID returns the thread id stored for the user, or ErrNotFound.
func (s *Store) GetThreadID(ctx context.Context, userID string) (string, error) {
	thread, err := s.driver.GetUserThread(ctx, &FindUserThread{UserID: &userID})
	if err != nil {
		return "", errors.Wrapf(err, "failed to get thread for user %s", userID)
	}
	if thread == nil {
		return "", errors.Wrapf(ErrNotFound, "no thread for user %s", userID)
	}
	return thread.ThreadID, nil
}

// CreateThread stores the thread id for the user, replacing an existing mapping.
func (s *Store) CreateThread(ctx context.Context, userID, threadID string) error {
	if _, err := s.driver.UpsertUserThread(ctx, &UpsertUserThread{UserID: userID, ThreadID: threadID}); err != nil {
		return errors.Wrapf(err, "failed to store thread %s for user %s", threadID, userID)
	}
	return nil
}

// GetTranscriptSharing returns the stored transcript sharing flag, or ErrNotFound
// when the user never set it.
func (s *Store) GetTranscriptSharing(ctx context.Context, userID string) (bool, error) {
	prefs, err := s.driver.GetUserPreferences(ctx, &FindUserPreferences{UserID: &userID})
	if err != nil {
		return false, errors.Wrapf(err, "failed to get preferences for user %s", userID)
	}
	if prefs == nil {
		return false, errors.Wrapf(ErrNotFound, "no preferences for user %s", userID)
	}
	return prefs.TranscriptSharing, nil
}

// SetTranscriptSharing stores the transcript sharing flag for the user.
func (s *Store) SetTranscriptSharing(ctx context.Context, userID string, enabled bool) error {
	if _, err := s.driver.UpsertUserPreferences(ctx, &UpsertUserPreferences{UserID: userID, TranscriptSharing: enabled}); err != nil {
		return errors.Wrapf(err, "failed to store preferences for user %s", userID)
	}
	return nil
}
