package mlflow

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateRun(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/2.0/mlflow/runs/create", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)

		var in map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, "3", in["experiment_id"])
		assert.NotZero(t, in["start_time"])

		fmt.Fprint(w, `{"run":{"info":{"run_id":"abc123","experiment_id":"3","status":"RUNNING","artifact_uri":"mlflow-artifacts:/3/abc123/artifacts"}}}`)
	}))
	defer srv.Close()

	cli := NewClient(srv.URL, "")
	run, err := cli.CreateRun(context.Background(), "3", "train-x")
	require.NoError(t, err)
	assert.Equal(t, "abc123", run.Info.RunID)
	assert.Equal(t, "mlflow-artifacts:/3/abc123/artifacts", run.Info.ArtifactURI)
}

func TestSearchRunsDecodesMetrics(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/2.0/mlflow/runs/search", r.URL.Path)
		fmt.Fprint(w, `{"runs":[
			{"info":{"run_id":"r1","status":"FINISHED"},"data":{"metrics":[{"key":"rmse_2021","value":12.5}]}},
			{"info":{"run_id":"r2","status":"FAILED"},"data":{}}
		]}`)
	}))
	defer srv.Close()

	cli := NewClient(srv.URL, "")
	runs, err := cli.SearchRuns(context.Background(), []string{"3"}, "start_time DESC")
	require.NoError(t, err)
	require.Len(t, runs, 2)

	v, ok := runs[0].Metric("rmse_2021")
	assert.True(t, ok)
	assert.Equal(t, 12.5, v)

	_, ok = runs[1].Metric("rmse_2021")
	assert.False(t, ok)
}

func TestTransitionStage(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/2.0/mlflow/model-versions/transition-stage", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		fmt.Fprint(w, `{"model_version":{"name":"m","version":"2","current_stage":"Staging"}}`)
	}))
	defer srv.Close()

	cli := NewClient(srv.URL, "")
	version, err := cli.TransitionStage(context.Background(), "m", "2", "Staging", true)
	require.NoError(t, err)
	assert.Equal(t, "Staging", version.CurrentStage)

	assert.Equal(t, "m", got["name"])
	assert.Equal(t, "2", got["version"])
	assert.Equal(t, "Staging", got["stage"])
	assert.Equal(t, true, got["archive_existing_versions"])
}

func TestIsNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error_code":"RESOURCE_DOES_NOT_EXIST","message":"no such model"}`)
	}))
	defer srv.Close()

	cli := NewClient(srv.URL, "")
	_, err := cli.RegisteredModel(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.False(t, IsNotFound(fmt.Errorf("other")))
}

func TestArtifactUploadAndDownload(t *testing.T) {
	var uploaded []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/2.0/mlflow-artifacts/artifacts/3/abc/artifacts/random_forest_regressor/model.json", r.URL.Path)
		switch r.Method {
		case http.MethodPut:
			uploaded, _ = io.ReadAll(r.Body)
			w.WriteHeader(http.StatusOK)
		case http.MethodGet:
			_, _ = w.Write(uploaded)
		}
	}))
	defer srv.Close()

	cli := NewClient(srv.URL, "")
	uri := "mlflow-artifacts:/3/abc/artifacts"
	path := "random_forest_regressor/model.json"

	require.NoError(t, cli.UploadArtifact(context.Background(), uri, path, []byte(`{"trees":[]}`)))
	data, err := cli.DownloadArtifact(context.Background(), uri, path)
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"trees":[]}`), data)
}

func TestResolveStagedModel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/2.0/mlflow/registered-models/get-latest-versions":
			fmt.Fprint(w, `{"model_versions":[{"name":"m","version":"4","current_stage":"Staging","run_id":"abc","source":"mlflow-artifacts:/3/abc/artifacts/random_forest_regressor"}]}`)
		case "/api/2.0/mlflow-artifacts/artifacts/3/abc/artifacts/random_forest_regressor/model.json":
			fmt.Fprint(w, `{"model":"bytes"}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	cli := NewClient(srv.URL, "")
	data, version, err := cli.ResolveStagedModel(context.Background(), "m", "Staging", "model.json")
	require.NoError(t, err)
	assert.Equal(t, "4", version.Version)
	assert.JSONEq(t, `{"model":"bytes"}`, string(data))
}

func TestResolveStagedModelNoVersions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"model_versions":[]}`)
	}))
	defer srv.Close()

	cli := NewClient(srv.URL, "")
	_, _, err := cli.ResolveStagedModel(context.Background(), "m", "Staging", "model.json")
	assert.Error(t, err)
}

func TestBearerToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer s3cret", r.Header.Get("Authorization"))
		fmt.Fprint(w, `{"experiment":{"experiment_id":"1","name":"e"}}`)
	}))
	defer srv.Close()

	cli := NewClient(srv.URL, "s3cret")
	_, err := cli.ExperimentByName(context.Background(), "e")
	require.NoError(t, err)
}
