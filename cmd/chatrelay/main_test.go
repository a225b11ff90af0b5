package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/chatrelay/internal/profile"
	"github.com/hrygo/chatrelay/server/timezone"
)

func TestDefaultTimeZoneResolves(t *testing.T) {
	// An empty ZONEINFO directory stands in for an image without zone files.
	t.Setenv("ZONEINFO", t.TempDir())
	t.Setenv("CHATRELAY_TIMEZONE", "")

	p := &profile.Profile{}
	p.FromEnv()

	loc, err := timezone.ParseTimezone(p.TimeZone)
	require.NoError(t, err)
	assert.Equal(t, "Europe/Berlin", loc.String())
}
