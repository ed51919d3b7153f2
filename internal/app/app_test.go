package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polytrade/internal/config"
	"github.com/alanyoungcy/polytrade/internal/discovery"
)

func TestBuildProfiles_Defaults(t *testing.T) {
	profiles, err := buildProfiles(config.Defaults().Discovery)
	require.NoError(t, err)
	require.Len(t, profiles, 2)

	urgent := profiles[0]
	assert.Equal(t, "urgent", urgent.Name)
	assert.Equal(t, discovery.ModeUrgent, urgent.Window.Mode)
	assert.Equal(t, 6.0, urgent.Window.LookaheadHours)
	assert.Equal(t, 0.80, urgent.Score.MinPrice)
	assert.Equal(t, 0.90, urgent.Score.MaxPrice)
	assert.Equal(t, 1000.0, urgent.Score.MinLiquidity)
	assert.Equal(t, 5, urgent.Score.MaxResults)
	assert.Equal(t, 100, urgent.Fetch.PageSize)

	live := profiles[1]
	assert.Equal(t, discovery.ModeLive, live.Window.Mode)
	assert.Equal(t, 4.0, live.Window.LookbackHours)
	assert.Equal(t, 0.93, live.Score.MinPrice)
	assert.Equal(t, 500.0, live.Score.MinLiquidity)
}

func TestBuildProfiles_DedupesAndRejectsUnknown(t *testing.T) {
	cfg := config.Defaults().Discovery
	cfg.Profiles = []string{"Live", "live"}
	profiles, err := buildProfiles(cfg)
	require.NoError(t, err)
	assert.Len(t, profiles, 1)

	cfg.Profiles = []string{"weekly"}
	_, err = buildProfiles(cfg)
	assert.Error(t, err)
}

func TestBuildProfiles_InvalidBand(t *testing.T) {
	cfg := config.Defaults().Discovery
	cfg.Urgent.MinPrice = 0.95
	cfg.Urgent.MaxPrice = 0.90
	_, err := buildProfiles(cfg)
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, "DEBUG", ParseLevel("debug").String())
	assert.Equal(t, "WARN", ParseLevel("WARN").String())
	assert.Equal(t, "INFO", ParseLevel("bogus").String())
}
