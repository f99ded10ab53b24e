package state

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectedRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.yaml")
	s := NewStore(path)

	got, err := s.Selected("default")
	require.NoError(t, err)
	assert.Empty(t, got, "missing file means no selection")

	require.NoError(t, s.SetSelected("default", "chat-1"))
	got, err = s.Selected("default")
	require.NoError(t, err)
	assert.Equal(t, "chat-1", got)

	// A fresh store over the same file sees the selection.
	got, err = NewStore(path).Selected("default")
	require.NoError(t, err)
	assert.Equal(t, "chat-1", got)
}

func TestProfilesAreIndependent(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "state.yaml"))
	require.NoError(t, s.SetSelected("work", "w1"))
	require.NoError(t, s.SetSelected("home", "h1"))
	require.NoError(t, s.ClearSelected("work"))

	got, err := s.Selected("work")
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = s.Selected("home")
	require.NoError(t, err)
	assert.Equal(t, "h1", got)

	profiles, err := s.Profiles()
	require.NoError(t, err)
	assert.Len(t, profiles, 1)
	assert.False(t, profiles["home"].UpdatedAt.IsZero())
}

func TestClearWithoutFileDoesNotCreateIt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.yaml")
	require.NoError(t, NewStore(path).ClearSelected("default"))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestEmptyProfile(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "state.yaml"))
	_, err := s.Selected("")
	assert.ErrorIs(t, err, ErrNoProfile)
	assert.ErrorIs(t, s.SetSelected("", "x"), ErrNoProfile)
}

func TestCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.yaml")
	require.NoError(t, os.WriteFile(path, []byte("profiles: [not, a, map"), 0o644))

	_, err := NewStore(path).Selected("default")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse state")
}
