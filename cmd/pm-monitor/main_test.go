package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/pm-monitor/internal/config"
	"github.com/i474232898/pm-monitor/internal/monitor"
	"github.com/i474232898/pm-monitor/internal/monitor/earthengine"
	"github.com/i474232898/pm-monitor/internal/store"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		runLocalOnly = false
	})
	err := rootCmd.Execute()
	return buf.String(), err
}

func setEnv(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("APP_ENV", "prod")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("EE_SERVICE_ACCOUNT", "monitor@project.iam.gserviceaccount.com")
	t.Setenv("EE_KEY_FILE", filepath.Join(dir, "missing-key.json"))
	t.Setenv("OUT_DIR", dir)
	t.Setenv("GITHUB_TOKEN", "")
	t.Setenv("MQTT_BROKER", "")
}

func TestVersionCmd(t *testing.T) {
	original := version
	version = "test-version-1.0.0"
	defer func() { version = original }()

	out, err := execute(t, "version")

	assert.NoError(t, err)
	assert.Contains(t, out, "pm-monitor version test-version-1.0.0")
}

func TestRunCmd_RequiresGitHubToken(t *testing.T) {
	setEnv(t)

	out, err := execute(t, "run")

	assert.ErrorIs(t, err, config.ErrMissingGitHubToken)
	assert.NotContains(t, out, successMarker)
}

func TestRunCmd_LocalOnlyStillNeedsEarthEngine(t *testing.T) {
	setEnv(t)

	out, err := execute(t, "run", "--local-only")

	assert.ErrorIs(t, err, earthengine.ErrMissingKeyFile)
	assert.NotContains(t, out, successMarker)
}

func TestRunCmd_InvalidConfig(t *testing.T) {
	setEnv(t)
	t.Setenv("EE_SERVICE_ACCOUNT", "")

	_, err := execute(t, "run", "--local-only")

	assert.Error(t, err)
}

func TestHTTPApp(t *testing.T) {
	reports := store.NewMemoryStore(0, 0)
	app := newHTTPApp(reports)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/current", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var errBody struct {
		Error   bool   `json:"error"`
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(body, &errBody))
	assert.True(t, errBody.Error)
	assert.NotEmpty(t, errBody.Message)

	pm := 9.0
	reports.SaveReport(monitor.Report{
		StartedAt: time.Now().UTC(),
		Current:   monitor.Reading{Timestamp: "T1", PM25: &pm},
	})
	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/current", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
