package eeprom

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/chamber-control/internal/control"
)

var (
	_ control.Storage = (*Memory)(nil)
	_ control.Storage = (*File)(nil)
	_ control.Storage = (*SQLite)(nil)
)

func TestMemory(t *testing.T) {
	m := NewMemory(16)

	got, err := m.ReadBlock(0, 4)
	require.NoError(t, err)
	assert.Equal(t, []byte{Blank, Blank, Blank, Blank}, got)

	require.NoError(t, m.WriteBlock(2, []byte{1, 2, 3}))
	got, err = m.ReadBlock(1, 5)
	require.NoError(t, err)
	assert.Equal(t, []byte{Blank, 1, 2, 3, Blank}, got)
	assert.Equal(t, 1, m.Writes())

	// returned blocks are copies
	got[1] = 9
	again, _ := m.ReadBlock(2, 1)
	assert.Equal(t, []byte{1}, again)
}

func TestMemoryBounds(t *testing.T) {
	m := NewMemory(8)

	_, err := m.ReadBlock(6, 3)
	assert.ErrorIs(t, err, ErrOutOfRange)
	_, err = m.ReadBlock(-1, 1)
	assert.ErrorIs(t, err, ErrOutOfRange)
	assert.ErrorIs(t, m.WriteBlock(8, []byte{0}), ErrOutOfRange)
	assert.Equal(t, 0, m.Writes())
}

func TestFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "eeprom.bin")

	f, err := OpenFile(path, 32)
	require.NoError(t, err)

	got, err := f.ReadBlock(0, 2)
	require.NoError(t, err)
	assert.Equal(t, []byte{Blank, Blank}, got)

	require.NoError(t, f.WriteBlock(10, []byte{0xAB, 0xCD}))
	_, err = f.ReadBlock(31, 2)
	assert.ErrorIs(t, err, ErrOutOfRange)
	require.NoError(t, f.Close())

	st, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(32), st.Size())

	// survives a reopen, and growing keeps the contents
	f, err = OpenFile(path, 64)
	require.NoError(t, err)
	defer f.Close()

	got, err = f.ReadBlock(10, 2)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xAB, 0xCD}, got)

	got, err = f.ReadBlock(60, 4)
	require.NoError(t, err)
	assert.Equal(t, []byte{Blank, Blank, Blank, Blank}, got)
}

func TestOpenFileBadPath(t *testing.T) {
	_, err := OpenFile(filepath.Join(t.TempDir(), "missing", "eeprom.bin"), 8)
	assert.Error(t, err)
}

func TestLayout(t *testing.T) {
	l := Layout{Base: 16}
	assert.Equal(t, 16, l.MarkerOffset())
	assert.Equal(t, 17, l.SettingsOffset())
	assert.Equal(t, 17+control.SettingsSize, l.ConstantsOffset())
	assert.Equal(t, 16+1+control.SettingsSize+control.ConstantsSize, l.End())
}
