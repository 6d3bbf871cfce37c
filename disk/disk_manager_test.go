package disk

import (
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"corebase"
)

func newTestManager(t *testing.T) (Manager, func()) {
	t.Helper()
	name := uuid.NewString() + ".corebase"
	m, err := NewManager(name)
	require.NoError(t, err)
	return m, func() {
		m.Close()
		os.Remove(name)
	}
}

func TestManager_WriteThenReadRoundTrips(t *testing.T) {
	m, cleanup := newTestManager(t)
	defer cleanup()

	m.IncreaseDiskSpace(3)
	buf := make([]byte, corebase.PageSize)
	for i := range buf {
		buf[i] = byte(i)
	}
	m.WritePage(2, buf)

	got := make([]byte, corebase.PageSize)
	m.ReadPage(2, got)
	assert.Equal(t, buf, got)
}

func TestManager_ReadingNeverWrittenPage_ReadsZeros(t *testing.T) {
	m, cleanup := newTestManager(t)
	defer cleanup()

	m.IncreaseDiskSpace(1)
	got := make([]byte, corebase.PageSize)
	for i := range got {
		got[i] = 0xFF
	}
	m.ReadPage(0, got)

	want := make([]byte, corebase.PageSize)
	assert.Equal(t, want, got)
}

func TestManager_ReopenPersistsData(t *testing.T) {
	name := uuid.NewString() + ".corebase"
	defer os.Remove(name)

	m1, err := NewManager(name)
	require.NoError(t, err)
	m1.IncreaseDiskSpace(1)
	buf := make([]byte, corebase.PageSize)
	buf[0] = 7
	m1.WritePage(0, buf)
	require.NoError(t, m1.Close())

	m2, err := NewManager(name)
	require.NoError(t, err)
	defer m2.Close()

	got := make([]byte, corebase.PageSize)
	m2.ReadPage(0, got)
	assert.Equal(t, buf, got)
}
