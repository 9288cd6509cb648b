package hardware

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wilhg/qreplay/pkg/errmodel"
)

func TestShotBounds(t *testing.T) {
	tests := []struct {
		name    string
		d       Descriptor
		wantMax int
	}{
		{name: "v1 with limit", d: V1("fake_manila", 20000), wantMax: 20000},
		{name: "v1 reporting no limit", d: V1("fake_sim", 0), wantMax: 0},
		{name: "v2 is unbounded", d: V2("fake_sherbrooke"), wantMax: 0},
		{name: "v2 ignores max_shots", d: Descriptor{API: APIV2, MaxShots: 10}, wantMax: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			min, max := tt.d.ShotBounds()
			assert.Equal(t, 1, min)
			assert.Equal(t, tt.wantMax, max)
			assert.NoError(t, tt.d.Validate())
		})
	}
}

func TestValidate_Unsupported(t *testing.T) {
	err := Descriptor{API: "v3", Name: "future"}.Validate()
	assert.True(t, errmodel.HasCode(err, errmodel.CodeUnsupportedBackend))
	assert.True(t, errmodel.IsCategory(err, errmodel.CategoryBackend))
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "device.toml")
	require.NoError(t, os.WriteFile(path, []byte("api = \"V1\"\nname = \"fake_manila\"\nmax_shots = 100\n"), 0o600))

	d, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, V1("fake_manila", 100), d)

	bad := filepath.Join(dir, "bad.toml")
	require.NoError(t, os.WriteFile(bad, []byte("api = \"quantum-annealer\"\n"), 0o600))
	_, err = LoadFile(bad)
	assert.True(t, errmodel.HasCode(err, errmodel.CodeUnsupportedBackend))

	_, err = LoadFile(filepath.Join(dir, "missing.toml"))
	assert.Error(t, err)
}
