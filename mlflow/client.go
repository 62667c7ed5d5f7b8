// Package mlflow implements a client for the MLflow tracking and model
// registry REST API (v2.0), covering the subset of endpoints the
// pipeline stages need: experiments, runs, metrics and params, run
// artifacts served through the mlflow-artifacts proxy, registered
// models and stage transitions.
package mlflow

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	pathExperimentByName  = "%s/api/2.0/mlflow/experiments/get-by-name?experiment_name=%s"
	pathExperimentCreate  = "%s/api/2.0/mlflow/experiments/create"
	pathRunCreate         = "%s/api/2.0/mlflow/runs/create"
	pathRunUpdate         = "%s/api/2.0/mlflow/runs/update"
	pathRunGet            = "%s/api/2.0/mlflow/runs/get?run_id=%s"
	pathRunsSearch        = "%s/api/2.0/mlflow/runs/search"
	pathLogParam          = "%s/api/2.0/mlflow/runs/log-parameter"
	pathLogMetric         = "%s/api/2.0/mlflow/runs/log-metric"
	pathLogBatch          = "%s/api/2.0/mlflow/runs/log-batch"
	pathModelGet          = "%s/api/2.0/mlflow/registered-models/get?name=%s"
	pathModelCreate       = "%s/api/2.0/mlflow/registered-models/create"
	pathLatestVersions    = "%s/api/2.0/mlflow/registered-models/get-latest-versions"
	pathVersionCreate     = "%s/api/2.0/mlflow/model-versions/create"
	pathVersionTransition = "%s/api/2.0/mlflow/model-versions/transition-stage"
	pathArtifactsProxy    = "%s/api/2.0/mlflow-artifacts/artifacts%s/%s"
)

// APIError is the error document returned by the tracking server.
type APIError struct {
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
	Status    int    `json:"-"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("mlflow: %s: %s", e.ErrorCode, e.Message)
}

// IsNotFound reports whether err is the tracking server telling us a
// resource does not exist.
func IsNotFound(err error) bool {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.ErrorCode == "RESOURCE_DOES_NOT_EXIST" || ae.Status == http.StatusNotFound
	}
	return false
}

type Client interface {
	ExperimentByName(ctx context.Context, name string) (*Experiment, error)
	CreateExperiment(ctx context.Context, name string) (string, error)

	CreateRun(ctx context.Context, experimentID, name string) (*Run, error)
	EndRun(ctx context.Context, runID string, status RunStatus) error
	GetRun(ctx context.Context, runID string) (*Run, error)
	SearchRuns(ctx context.Context, experimentIDs []string, orderBy ...string) ([]*Run, error)

	LogParam(ctx context.Context, runID, key, value string) error
	LogMetric(ctx context.Context, runID, key string, value float64, step int64) error
	LogBatch(ctx context.Context, runID string, params []Param, metrics []Metric) error

	UploadArtifact(ctx context.Context, artifactURI, path string, data []byte) error
	DownloadArtifact(ctx context.Context, artifactURI, path string) ([]byte, error)

	RegisteredModel(ctx context.Context, name string) (*RegisteredModel, error)
	CreateRegisteredModel(ctx context.Context, name, description string) error
	CreateModelVersion(ctx context.Context, name, source, runID, description string) (*ModelVersion, error)
	LatestVersions(ctx context.Context, name string, stages []string) ([]*ModelVersion, error)
	TransitionStage(ctx context.Context, name, version, stage string, archiveExisting bool) (*ModelVersion, error)

	ResolveStagedModel(ctx context.Context, name, stage, path string) ([]byte, *ModelVersion, error)
}

type client struct {
	client *http.Client
	addr   string
	token  string
}

func NewClient(uri, token string) Client {
	return &client{http.DefaultClient, strings.TrimSuffix(uri, "/"), token}
}

func (c *client) ExperimentByName(ctx context.Context, name string) (*Experiment, error) {
	out := new(struct {
		Experiment *Experiment `json:"experiment"`
	})
	uri := fmt.Sprintf(pathExperimentByName, c.addr, url.QueryEscape(name))
	if err := c.get(ctx, uri, out); err != nil {
		return nil, err
	}
	return out.Experiment, nil
}

func (c *client) CreateExperiment(ctx context.Context, name string) (string, error) {
	in := &struct {
		Name string `json:"name"`
	}{Name: name}
	out := new(struct {
		ExperimentID string `json:"experiment_id"`
	})
	uri := fmt.Sprintf(pathExperimentCreate, c.addr)
	err := c.post(ctx, uri, in, out)
	return out.ExperimentID, err
}

func (c *client) CreateRun(ctx context.Context, experimentID, name string) (*Run, error) {
	in := &struct {
		ExperimentID string `json:"experiment_id"`
		RunName      string `json:"run_name,omitempty"`
		StartTime    int64  `json:"start_time"`
	}{ExperimentID: experimentID, RunName: name, StartTime: now()}
	out := new(struct {
		Run *Run `json:"run"`
	})
	uri := fmt.Sprintf(pathRunCreate, c.addr)
	if err := c.post(ctx, uri, in, out); err != nil {
		return nil, err
	}
	return out.Run, nil
}

func (c *client) EndRun(ctx context.Context, runID string, status RunStatus) error {
	in := &struct {
		RunID   string    `json:"run_id"`
		Status  RunStatus `json:"status"`
		EndTime int64     `json:"end_time"`
	}{RunID: runID, Status: status, EndTime: now()}
	uri := fmt.Sprintf(pathRunUpdate, c.addr)
	return c.post(ctx, uri, in, nil)
}

func (c *client) GetRun(ctx context.Context, runID string) (*Run, error) {
	out := new(struct {
		Run *Run `json:"run"`
	})
	uri := fmt.Sprintf(pathRunGet, c.addr, url.QueryEscape(runID))
	if err := c.get(ctx, uri, out); err != nil {
		return nil, err
	}
	return out.Run, nil
}

func (c *client) SearchRuns(ctx context.Context, experimentIDs []string, orderBy ...string) ([]*Run, error) {
	in := &struct {
		ExperimentIDs []string `json:"experiment_ids"`
		OrderBy       []string `json:"order_by,omitempty"`
		MaxResults    int      `json:"max_results,omitempty"`
	}{ExperimentIDs: experimentIDs, OrderBy: orderBy, MaxResults: 1000}
	out := new(struct {
		Runs []*Run `json:"runs"`
	})
	uri := fmt.Sprintf(pathRunsSearch, c.addr)
	err := c.post(ctx, uri, in, out)
	return out.Runs, err
}

func (c *client) LogParam(ctx context.Context, runID, key, value string) error {
	in := &struct {
		RunID string `json:"run_id"`
		Key   string `json:"key"`
		Value string `json:"value"`
	}{RunID: runID, Key: key, Value: value}
	uri := fmt.Sprintf(pathLogParam, c.addr)
	return c.post(ctx, uri, in, nil)
}

func (c *client) LogMetric(ctx context.Context, runID, key string, value float64, step int64) error {
	in := &struct {
		RunID     string  `json:"run_id"`
		Key       string  `json:"key"`
		Value     float64 `json:"value"`
		Timestamp int64   `json:"timestamp"`
		Step      int64   `json:"step"`
	}{RunID: runID, Key: key, Value: value, Timestamp: now(), Step: step}
	uri := fmt.Sprintf(pathLogMetric, c.addr)
	return c.post(ctx, uri, in, nil)
}

func (c *client) LogBatch(ctx context.Context, runID string, params []Param, metrics []Metric) error {
	in := &struct {
		RunID   string   `json:"run_id"`
		Params  []Param  `json:"params,omitempty"`
		Metrics []Metric `json:"metrics,omitempty"`
	}{RunID: runID, Params: params, Metrics: metrics}
	uri := fmt.Sprintf(pathLogBatch, c.addr)
	return c.post(ctx, uri, in, nil)
}

func (c *client) UploadArtifact(ctx context.Context, artifactURI, path string, data []byte) error {
	uri, err := c.artifactURL(artifactURI, path)
	if err != nil {
		return err
	}
	body, err := c.open(ctx, uri, http.MethodPut, bytes.NewReader(data), "application/octet-stream")
	if err != nil {
		return err
	}
	return body.Close()
}

func (c *client) DownloadArtifact(ctx context.Context, artifactURI, path string) ([]byte, error) {
	uri, err := c.artifactURL(artifactURI, path)
	if err != nil {
		return nil, err
	}
	body, err := c.open(ctx, uri, http.MethodGet, nil, "")
	if err != nil {
		return nil, err
	}
	defer body.Close()
	return io.ReadAll(body)
}

func (c *client) RegisteredModel(ctx context.Context, name string) (*RegisteredModel, error) {
	out := new(struct {
		RegisteredModel *RegisteredModel `json:"registered_model"`
	})
	uri := fmt.Sprintf(pathModelGet, c.addr, url.QueryEscape(name))
	if err := c.get(ctx, uri, out); err != nil {
		return nil, err
	}
	return out.RegisteredModel, nil
}

func (c *client) CreateRegisteredModel(ctx context.Context, name, description string) error {
	in := &struct {
		Name        string `json:"name"`
		Description string `json:"description,omitempty"`
	}{Name: name, Description: description}
	uri := fmt.Sprintf(pathModelCreate, c.addr)
	return c.post(ctx, uri, in, nil)
}

func (c *client) CreateModelVersion(ctx context.Context, name, source, runID, description string) (*ModelVersion, error) {
	in := &struct {
		Name        string `json:"name"`
		Source      string `json:"source"`
		RunID       string `json:"run_id,omitempty"`
		Description string `json:"description,omitempty"`
	}{Name: name, Source: source, RunID: runID, Description: description}
	out := new(struct {
		ModelVersion *ModelVersion `json:"model_version"`
	})
	uri := fmt.Sprintf(pathVersionCreate, c.addr)
	if err := c.post(ctx, uri, in, out); err != nil {
		return nil, err
	}
	return out.ModelVersion, nil
}

func (c *client) LatestVersions(ctx context.Context, name string, stages []string) ([]*ModelVersion, error) {
	in := &struct {
		Name   string   `json:"name"`
		Stages []string `json:"stages,omitempty"`
	}{Name: name, Stages: stages}
	out := new(struct {
		ModelVersions []*ModelVersion `json:"model_versions"`
	})
	uri := fmt.Sprintf(pathLatestVersions, c.addr)
	err := c.post(ctx, uri, in, out)
	return out.ModelVersions, err
}

func (c *client) TransitionStage(ctx context.Context, name, version, stage string, archiveExisting bool) (*ModelVersion, error) {
	in := &struct {
		Name                    string `json:"name"`
		Version                 string `json:"version"`
		Stage                   string `json:"stage"`
		ArchiveExistingVersions bool   `json:"archive_existing_versions"`
	}{Name: name, Version: version, Stage: stage, ArchiveExistingVersions: archiveExisting}
	out := new(struct {
		ModelVersion *ModelVersion `json:"model_version"`
	})
	uri := fmt.Sprintf(pathVersionTransition, c.addr)
	if err := c.post(ctx, uri, in, out); err != nil {
		return nil, err
	}
	return out.ModelVersion, nil
}

// ResolveStagedModel resolves the latest version of the named model in
// the given stage and downloads one of its artifacts.
func (c *client) ResolveStagedModel(ctx context.Context, name, stage, path string) ([]byte, *ModelVersion, error) {
	versions, err := c.LatestVersions(ctx, name, []string{stage})
	if err != nil {
		return nil, nil, err
	}
	if len(versions) == 0 {
		return nil, nil, fmt.Errorf("mlflow: no version of model %q in stage %q", name, stage)
	}
	version := versions[0]
	data, err := c.DownloadArtifact(ctx, version.Source, path)
	if err != nil {
		return nil, nil, err
	}
	return data, version, nil
}

// artifactURL maps an artifact URI to the mlflow-artifacts proxy
// endpoint of the tracking server. URIs look like
// mlflow-artifacts:/<experiment>/<run>/artifacts and are served below
// /api/2.0/mlflow-artifacts/artifacts.
func (c *client) artifactURL(artifactURI, path string) (string, error) {
	switch {
	case strings.HasPrefix(artifactURI, "mlflow-artifacts:"):
		root := strings.TrimPrefix(artifactURI, "mlflow-artifacts:")
		return fmt.Sprintf(pathArtifactsProxy, c.addr, root, path), nil
	case strings.HasPrefix(artifactURI, "http://"), strings.HasPrefix(artifactURI, "https://"):
		return strings.TrimSuffix(artifactURI, "/") + "/" + path, nil
	default:
		return "", fmt.Errorf("mlflow: unsupported artifact uri %q", artifactURI)
	}
}

// helper function for making a http POST request.
func (c *client) post(ctx context.Context, rawURL string, in, out interface{}) error {
	return c.do(ctx, rawURL, http.MethodPost, in, out)
}

// helper function for making a http GET request.
func (c *client) get(ctx context.Context, rawURL string, out interface{}) error {
	return c.do(ctx, rawURL, http.MethodGet, nil, out)
}

func (c *client) do(ctx context.Context, rawURL, method string, in, out interface{}) error {
	var reader io.Reader
	if in != nil {
		decoded, err := json.Marshal(in)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(decoded)
	}
	body, err := c.open(ctx, rawURL, method, reader, "application/json")
	if err != nil {
		return err
	}
	defer body.Close()
	if out != nil {
		return json.NewDecoder(body).Decode(out)
	}
	return nil
}

func (c *client) open(ctx context.Context, rawURL, method string, in io.Reader, contentType string) (io.ReadCloser, error) {
	uri, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, uri.String(), http.NoBody)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if in != nil {
		decoded, dErr := io.ReadAll(in)
		if dErr != nil {
			return nil, dErr
		}
		req.Body = io.NopCloser(bytes.NewReader(decoded))
		req.ContentLength = int64(len(decoded))
		req.Header.Set("Content-Length", strconv.Itoa(len(decoded)))
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode > 299 { //nolint
		defer resp.Body.Close()
		raw, _ := io.ReadAll(resp.Body)
		ae := &APIError{Status: resp.StatusCode}
		if jErr := json.Unmarshal(raw, ae); jErr != nil || ae.Message == "" {
			return nil, fmt.Errorf("mlflow: client error %d: %s", resp.StatusCode, string(raw))
		}
		return nil, ae
	}
	return resp.Body, nil
}

func now() int64 {
	return time.Now().UnixMilli()
}
