package profiles

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "cfg", "servers.json"))
	require.NoError(t, err)
	return s
}

func sample() Profile {
	return Profile{
		Name: "Libera", Host: "irc.libera.chat", Port: 6697, TLS: true,
		Nick: "peach", Channels: []string{"#peach"},
	}
}

func TestNewCreatesEmptyFile(t *testing.T) {
	s := newStore(t)
	list, err := s.List()
	require.NoError(t, err)
	assert.Empty(t, list)
	_, err = os.Stat(s.path)
	assert.NoError(t, err)
}

func TestReplaceAndGet(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.Replace([]Profile{sample()}))

	got, err := s.Get("Libera")
	require.NoError(t, err)
	assert.Equal(t, sample(), got)

	_, err = s.Get("nope")
	assert.Error(t, err)
}

func TestReplaceValidates(t *testing.T) {
	s := newStore(t)

	bad := sample()
	bad.Port = 0
	assert.Error(t, s.Replace([]Profile{bad}))

	bad = sample()
	bad.Nick = ""
	assert.Error(t, s.Replace([]Profile{bad}))

	assert.Error(t, s.Replace([]Profile{sample(), sample()}), "duplicate names rejected")
}

func TestPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "servers.json")

	s, err := New(path)
	require.NoError(t, err)
	require.NoError(t, s.Replace([]Profile{sample()}))

	reopened, err := New(path)
	require.NoError(t, err)
	list, err := reopened.List()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Libera", list[0].Name)
}
