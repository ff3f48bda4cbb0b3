package preflight

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kensakudev/kensaku/internal/config"
)

func newTestChecker(t *testing.T) (*Checker, *bytes.Buffer) {
	t.Helper()
	cfg := config.NewConfig()
	cfg.Index.DataDir = t.TempDir()
	var buf bytes.Buffer
	return New(cfg, WithOutput(&buf)), &buf
}

func TestRunAll_CleanEnvironmentPasses(t *testing.T) {
	c, _ := newTestChecker(t)

	results := c.RunAll(context.Background())
	require.Len(t, results, 4)
	assert.False(t, c.HasCriticalFailures(results))
	assert.Equal(t, "ready", c.SummaryStatus(results))
}

func TestCheckDataDirWritable_CreatesMissingDir(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Index.DataDir = t.TempDir() + "/nested/data"
	c := New(cfg)

	result := c.CheckDataDirWritable()
	assert.Equal(t, StatusPass, result.Status)
	assert.True(t, result.Required)
}

func TestCheckDictionary(t *testing.T) {
	c, _ := newTestChecker(t)

	result := c.CheckDictionary()
	assert.Equal(t, StatusPass, result.Status)
	assert.Equal(t, "OK", result.Message)
}

func TestCheckStorageRoundTrip(t *testing.T) {
	c, _ := newTestChecker(t)

	result := c.CheckStorageRoundTrip(context.Background())
	assert.Equal(t, StatusPass, result.Status, result.Message)
}

func TestCheckStoreConsistency_NoIndexYet(t *testing.T) {
	c, _ := newTestChecker(t)

	result := c.CheckStoreConsistency(context.Background())
	assert.Equal(t, StatusPass, result.Status)
	assert.Equal(t, "no index yet", result.Message)
	assert.False(t, result.Required)
}

func TestPrintResults(t *testing.T) {
	c, buf := newTestChecker(t)

	c.PrintResults([]CheckResult{
		{Name: "data_dir_writable", Status: StatusPass, Message: "OK", Required: true},
		{Name: "store_consistency", Status: StatusWarn, Message: "drift detected"},
	})

	out := buf.String()
	assert.Contains(t, out, "Kensaku System Check")
	assert.Contains(t, out, "[PASS] data_dir_writable: OK")
	assert.Contains(t, out, "[WARN] store_consistency: drift detected")
	assert.Contains(t, out, "Status: ready_with_warnings")
}

func TestSummaryStatus_Failed(t *testing.T) {
	c, _ := newTestChecker(t)

	results := []CheckResult{
		{Name: "data_dir_writable", Status: StatusFail, Required: true},
	}
	assert.True(t, c.HasCriticalFailures(results))
	assert.Equal(t, "failed", c.SummaryStatus(results))
}

func TestCheckStatus_String(t *testing.T) {
	assert.Equal(t, "PASS", StatusPass.String())
	assert.Equal(t, "WARN", StatusWarn.String())
	assert.Equal(t, "FAIL", StatusFail.String())
	assert.Equal(t, "UNKNOWN", CheckStatus(9).String())
}
