package icron

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetTriggerInfo_EveryTenMinutes(t *testing.T) {
	ref := time.Date(2024, 5, 1, 12, 5, 30, 0, time.UTC)

	info, err := GetTriggerInfo("*/10 * * * *", ref)
	require.NoError(t, err)

	assert.Equal(t, time.Date(2024, 5, 1, 12, 10, 0, 0, time.UTC), info.Next)
	assert.Equal(t, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), info.Last)
	assert.Equal(t, 5*time.Minute+30*time.Second, info.TimeSinceLast)
	assert.Equal(t, 4*time.Minute+30*time.Second, info.TimeUntilNext)
}

func TestGetTriggerInfo_Daily(t *testing.T) {
	ref := time.Date(2024, 5, 1, 1, 0, 0, 0, time.UTC)

	info, err := GetTriggerInfo("0 3 * * *", ref)
	require.NoError(t, err)

	assert.Equal(t, time.Date(2024, 5, 1, 3, 0, 0, 0, time.UTC), info.Next)
	assert.Equal(t, time.Date(2024, 4, 30, 3, 0, 0, 0, time.UTC), info.Last)
}

func TestGetTriggerInfo_Descriptor(t *testing.T) {
	ref := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)

	info, err := GetTriggerInfo("@hourly", ref)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 1, 13, 0, 0, 0, time.UTC), info.Next)
	assert.Equal(t, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), info.Last)
}

func TestGetTriggerInfo_Invalid(t *testing.T) {
	_, err := GetTriggerInfo("0 0 0 * * *", time.Now())
	assert.Error(t, err)

	_, err = GetTriggerInfo("every day", time.Now())
	assert.Error(t, err)
}
