package zonestore

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/mute-zones-service/internal/domain"
)

const zoneYAML = `zones:
  - name: office
    lat: 51.5007
    lon: -0.1246
    radius_meters: 75
  - name: cinema
    lat: 51.5101
    lon: -0.1340
  - name: disabled
    lat: 51.52
    lon: -0.10
    radius_meters: 0
`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeZoneFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestFileStore_Load(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zones.yaml")
	writeZoneFile(t, path, zoneYAML)

	s, err := NewFileStore(path, 50, discardLogger())
	require.NoError(t, err)

	zones, err := s.Zones(context.Background())
	require.NoError(t, err)

	want := []domain.Zone{
		{Name: "office", Lat: 51.5007, Lon: -0.1246, RadiusMeters: 75},
		{Name: "cinema", Lat: 51.5101, Lon: -0.1340, RadiusMeters: 50},
		{Name: "disabled", Lat: 51.52, Lon: -0.10, RadiusMeters: 0},
	}
	if diff := cmp.Diff(want, zones); diff != "" {
		t.Errorf("zones mismatch (-want +got):\n%s", diff)
	}
}

func TestFileStore_ZonesReturnsCopy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zones.yaml")
	writeZoneFile(t, path, zoneYAML)
	s, err := NewFileStore(path, 50, discardLogger())
	require.NoError(t, err)

	zones, _ := s.Zones(context.Background())
	zones[0].Name = "mutated"

	again, _ := s.Zones(context.Background())
	assert.Equal(t, "office", again[0].Name)
}

func TestFileStore_Errors(t *testing.T) {
	tests := map[string]string{
		"bad yaml":        "zones: [",
		"missing name":    "zones:\n  - lat: 1\n    lon: 2\n",
		"bad latitude":    "zones:\n  - name: x\n    lat: 91\n    lon: 2\n",
		"negative radius": "zones:\n  - name: x\n    lat: 1\n    lon: 2\n    radius_meters: -5\n",
		"duplicate name":  "zones:\n  - name: x\n    lat: 1\n    lon: 2\n  - name: x\n    lat: 3\n    lon: 4\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "zones.yaml")
			writeZoneFile(t, path, content)
			_, err := NewFileStore(path, 50, discardLogger())
			require.Error(t, err)
		})
	}

	t.Run("negative radius is invalid input", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "zones.yaml")
		writeZoneFile(t, path, tests["negative radius"])
		_, err := NewFileStore(path, 50, discardLogger())
		require.ErrorIs(t, err, domain.ErrInvalidInput)
		assert.Contains(t, err.Error(), "radius")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := NewFileStore(filepath.Join(t.TempDir(), "absent.yaml"), 50, discardLogger())
		require.Error(t, err)
	})
}

func TestFileStore_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zones.yaml")
	writeZoneFile(t, path, "")

	s, err := NewFileStore(path, 50, discardLogger())
	require.NoError(t, err)
	zones, err := s.Zones(context.Background())
	require.NoError(t, err)
	assert.Empty(t, zones)
}

func TestFileStore_FailedReloadKeepsPrevious(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zones.yaml")
	writeZoneFile(t, path, zoneYAML)
	s, err := NewFileStore(path, 50, discardLogger())
	require.NoError(t, err)

	writeZoneFile(t, path, "zones: [")
	require.Error(t, s.Reload())

	zones, _ := s.Zones(context.Background())
	assert.Len(t, zones, 3)
}

func TestFileStore_WatchReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zones.yaml")
	writeZoneFile(t, path, zoneYAML)
	s, err := NewFileStore(path, 50, discardLogger())
	require.NoError(t, err)
	s.reloadDelay = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Watch(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	// Give the watcher time to register before writing.
	time.Sleep(50 * time.Millisecond)
	writeZoneFile(t, path, "zones:\n  - name: home\n    lat: 10\n    lon: 20\n")

	require.Eventually(t, func() bool {
		zones, _ := s.Zones(context.Background())
		return len(zones) == 1 && zones[0].Name == "home"
	}, 2*time.Second, 10*time.Millisecond)
}
