package cli

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/jobstore"
	"github.com/xraph/jobstore/job"
)

func TestLoadFallsBackToStorageDefaults(t *testing.T) {
	v := viper.New()
	v.Set("db_path", "/tmp/x.db")
	v.Set("queues", []string{"critical", "default"})
	v.Set("poll_interval", "2s")

	cfg := Load(v)
	assert.Equal(t, "/tmp/x.db", cfg.DBPath)
	assert.Equal(t, []string{"critical", "default"}, cfg.Queues)

	sc := cfg.Storage()
	def := jobstore.DefaultConfig()
	assert.Equal(t, jobstore.DefaultPrefix, sc.Prefix)
	assert.Equal(t, 2*time.Second, sc.QueuePollInterval)
	assert.Equal(t, def.InvisibilityTimeout, sc.InvisibilityTimeout)
	assert.Equal(t, def.DistributedLockLifetime, sc.DistributedLockLifetime)
	require.NoError(t, sc.Validate())
}

func testConfig(t *testing.T) Config {
	t.Helper()
	cfg := Load(viper.New())
	cfg.DBPath = filepath.Join(t.TempDir(), "jobs.db")
	return cfg
}

func TestEnqueueJob(t *testing.T) {
	st, err := openStorage(testConfig(t), slog.Default())
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	inv, err := logJob(slog.Default()).Invocation("hi")
	require.NoError(t, err)

	jobID, err := enqueueJob(ctx, st.Connection(), inv, "critical")
	require.NoError(t, err)

	details, err := st.Monitoring().JobDetails(ctx, jobID)
	require.NoError(t, err)
	assert.Nil(t, details.ExpireAt, "enqueued jobs do not expire")
	require.NotNil(t, details.Invocation)
	assert.Equal(t, "log", details.Invocation.Name())
	assert.Equal(t, job.StateEnqueued, details.History[0].Name)

	claim, err := st.Connection().FetchNextJob(ctx, []string{"critical"})
	require.NoError(t, err)
	defer claim.Close()
	assert.Equal(t, jobID, claim.JobID())
}

func TestOpenStorageInMemory(t *testing.T) {
	cfg := testConfig(t)
	cfg.DBPath = MemoryDBPath
	st, err := openStorage(cfg, slog.Default())
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	inv, err := logJob(slog.Default()).Invocation("hi")
	require.NoError(t, err)
	_, err = enqueueJob(ctx, st.Connection(), inv, "default")
	require.NoError(t, err)

	stats, err := st.Monitoring().Statistics(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.Enqueued)
	_, err = os.Stat(MemoryDBPath)
	assert.True(t, os.IsNotExist(err))
}

func TestBuiltinsResolveLogJob(t *testing.T) {
	reg := job.NewRegistry()
	registerBuiltins(reg, slog.Default())

	inv, err := logJob(slog.Default()).Invocation("hi")
	require.NoError(t, err)
	h, err := reg.Resolve(inv)
	require.NoError(t, err)
	assert.NoError(t, h(context.Background(), inv.Args))
}

func TestRouterServesMetricsAndAPI(t *testing.T) {
	st, err := openStorage(testConfig(t), slog.Default())
	require.NoError(t, err)
	defer st.Close()

	srv := httptest.NewServer(newRouter(st, slog.Default()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "jobstore_store_up")

	resp, err = http.Get(srv.URL + "/readyz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestWriteDefaultConfig(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "conf", "jobstore.yaml")

	require.NoError(t, writeDefaultConfig(dest, false))
	assert.Error(t, writeDefaultConfig(dest, false), "existing file is kept")
	require.NoError(t, writeDefaultConfig(dest, true))

	v := viper.New()
	v.SetConfigFile(dest)
	require.NoError(t, v.ReadInConfig())
	cfg := Load(v)
	assert.Equal(t, []string{"default"}, cfg.Queues)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, 15*time.Second, cfg.PollInterval)

	_, err := os.Stat(dest)
	require.NoError(t, err)
}
