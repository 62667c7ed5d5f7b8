package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvironDefaults(t *testing.T) {
	env, err := FromEnviron()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:5001", env.Tracking.URL)
	assert.Equal(t, "playtime-prediction", env.Tracking.Experiment)
	assert.Equal(t, "playtime-prediction-model", env.Registry.ModelName)
	assert.Equal(t, "rmse_2021", env.Registry.Metric)
	assert.Equal(t, "Staging", env.Registry.Stage)
	assert.Equal(t, "random_forest_regressor", env.Registry.ArtifactPath)
	assert.Equal(t, "model.json", env.Registry.ArtifactFile)
	assert.Equal(t, ":5000", env.Server.Port)
	assert.Equal(t, "sqlite3", env.Database.Driver)
}

func TestFromEnvironOverrides(t *testing.T) {
	t.Setenv("PLAYTIME_TRACKING_URL", "http://tracking:9999")
	t.Setenv("PLAYTIME_EXPERIMENT_NAME", "playtime-dev")
	t.Setenv("PLAYTIME_DEBUG", "true")
	t.Setenv("KAGGLE_USERNAME", "someuser")

	env, err := FromEnviron()
	require.NoError(t, err)

	assert.Equal(t, "http://tracking:9999", env.Tracking.URL)
	assert.Equal(t, "playtime-dev", env.Tracking.Experiment)
	assert.True(t, env.Debug)
	assert.Equal(t, "someuser", env.Kaggle.Username)
}
