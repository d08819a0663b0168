package persistence

import (
	"path/filepath"
	"testing"

	"github.com/LeonardoBeccarini/garden_controller/internal/model/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreSwitchesSurviveReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.db")

	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.ReadSwitches()
	assert.ErrorIs(t, err, ErrNotFound)

	want := entities.Switches{Water: true, FertPump: true}
	require.NoError(t, s.WriteSwitches(want))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.ReadSwitches()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestOpenBadPath(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing", "dir", "settings.db"))
	assert.Error(t, err)
}
