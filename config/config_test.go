package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.InDelta(t, 0.667, cfg.Consensus.ToleranceFraction, 1e-9)
	assert.False(t, cfg.Consensus.StrictVCCounter)
}

func TestValidateRejectsBadTolerance(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Consensus.ToleranceFraction = 0
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Committee.DSCommitteeSize = 0
	assert.Error(t, cfg.Validate())
}

func TestLoadFromFileOverridesOnlyGivenFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "node.json")
	body := `{"Consensus":{"ToleranceFraction":0.667,"StrictVCCounter":true},"Committee":{"DSCommitteeSize":10}}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.True(t, cfg.Consensus.StrictVCCounter)
	assert.Equal(t, 10, cfg.Committee.DSCommitteeSize)
	// 未出现的字段保持默认
	assert.Equal(t, DefaultConfig().Sender.WorkerCount, cfg.Sender.WorkerCount)
}

func TestLoadFromFileEmptyPath(t *testing.T) {
	cfg, err := LoadFromFile("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}
