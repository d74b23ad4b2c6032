package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WuLonghui/nise-bosh/internal/foundation/errors"
)

func TestDefaults(t *testing.T) {
	opts := Defaults()
	assert.Equal(t, "/var/vcap", opts.InstallDir)
	assert.Equal(t, "/tmp/nise_bosh", opts.WorkingDir)
	assert.Equal(t, "bash -e", opts.PackagingShell)
	assert.Zero(t, opts.Index)
	require.NoError(t, opts.Validate())
}

func TestLoad(t *testing.T) {
	t.Run("empty path returns defaults", func(t *testing.T) {
		opts, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, Defaults(), opts)
	})

	t.Run("file overrides defaults", func(t *testing.T) {
		t.Setenv("TEST_NISE_ROOT", "/opt/vcap")
		path := filepath.Join(t.TempDir(), "nise-bosh.yml")
		require.NoError(t, os.WriteFile(path, []byte("install_dir: ${TEST_NISE_ROOT}\nindex: 2\nkeep_monit_files: true\n"), 0o600))

		opts, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "/opt/vcap", opts.InstallDir)
		assert.Equal(t, "/tmp/nise_bosh", opts.WorkingDir)
		assert.Equal(t, 2, opts.Index)
		assert.True(t, opts.KeepMonitFiles)
	})

	t.Run("empty file keeps defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "empty.yml")
		require.NoError(t, os.WriteFile(path, nil, 0o600))
		opts, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, Defaults(), opts)
	})

	t.Run("unknown key", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yml")
		require.NoError(t, os.WriteFile(path, []byte("install_root: /x\n"), 0o600))
		_, err := Load(path)
		require.Error(t, err)
		assert.True(t, errors.HasCategory(err, errors.CategoryConfig))
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.yml"))
		require.Error(t, err)
		assert.True(t, errors.HasCategory(err, errors.CategoryConfig))
	})
}

func TestApply(t *testing.T) {
	opts := Defaults()
	opts.IP = "10.0.0.1"
	idx := 3
	opts.Apply(Overrides{InstallDir: "/srv/vcap", Index: &idx, ForceCompile: true})

	assert.Equal(t, "/srv/vcap", opts.InstallDir)
	assert.Equal(t, "10.0.0.1", opts.IP)
	assert.Equal(t, 3, opts.Index)
	assert.True(t, opts.ForceCompile)
	assert.False(t, opts.KeepMonitFiles)

	opts.Apply(Overrides{})
	assert.Equal(t, 3, opts.Index)
	assert.True(t, opts.ForceCompile)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Options)
		wantErr bool
	}{
		{"valid ip", func(o *Options) { o.IP = "192.168.0.10" }, false},
		{"hostname", func(o *Options) { o.IP = "miku.local" }, true},
		{"ipv6", func(o *Options) { o.IP = "::1" }, true},
		{"short quad", func(o *Options) { o.IP = "10.0.1" }, true},
		{"negative index", func(o *Options) { o.Index = -1 }, true},
		{"no install dir", func(o *Options) { o.InstallDir = "" }, true},
		{"no shell", func(o *Options) { o.PackagingShell = " " }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := Defaults()
			tt.mutate(&opts)
			err := opts.Validate()
			if !tt.wantErr {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.HasCategory(err, errors.CategoryValidation))
		})
	}
}

func TestLoadEnvFiles(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("NISE_BOSH_TEST_INDEX=4\nNISE_BOSH_TEST_KEEP=from-file\n"), 0o600))
	t.Setenv("NISE_BOSH_TEST_KEEP", "from-env")
	t.Setenv("NISE_BOSH_TEST_INDEX", "")
	require.NoError(t, os.Unsetenv("NISE_BOSH_TEST_INDEX"))

	loaded, err := LoadEnvFiles(envFile, filepath.Join(dir, ".env.local"))
	require.NoError(t, err)
	assert.Equal(t, []string{envFile}, loaded)
	assert.Equal(t, "4", os.Getenv("NISE_BOSH_TEST_INDEX"))
	assert.Equal(t, "from-env", os.Getenv("NISE_BOSH_TEST_KEEP"))
}
