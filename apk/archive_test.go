package apk

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTestAPK assembles a minimal, valid-enough ZIP archive at dir/test.apk
// containing the given entries (name -> contents), using the standard
// library's archive/zip writer (klauspost/compress/zip reads its output
// without difference, since it is a drop-in-compatible fork).
func writeTestAPK(t *testing.T, dir string, entries map[string]string) string {
	t.Helper()
	path := filepath.Join(dir, "test.apk")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := zip.NewWriter(f)
	for name, contents := range entries {
		ew, err := w.Create(name)
		require.NoError(t, err)
		_, err = ew.Write([]byte(contents))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return path
}

func TestOpen_ValidAPK(t *testing.T) {
	dir := t.TempDir()
	path := writeTestAPK(t, dir, map[string]string{
		"AndroidManifest.xml": "manifest-bytes",
		"classes.dex":         "dex-1",
		"classes2.dex":        "dex-2",
		"resources.arsc":      "arsc-bytes",
		"res/layout/main.xml": "not a dex",
	})

	a, err := Open(path)
	require.NoError(t, err)
	assert.True(t, a.HasResources())

	entries := a.DexEntries()
	require.Len(t, entries, 2)
	assert.Equal(t, "classes.dex", entries[0].Name)
	assert.Equal(t, "classes2.dex", entries[1].Name)

	primary, ok := a.PrimaryDex()
	require.True(t, ok)
	assert.Equal(t, "classes.dex", primary.Name)

	manifest, err := a.ExtractManifest()
	require.NoError(t, err)
	assert.Equal(t, "manifest-bytes", string(manifest))
}

func TestOpen_MissingManifestIsFatal(t *testing.T) {
	dir := t.TempDir()
	path := writeTestAPK(t, dir, map[string]string{
		"classes.dex": "dex-1",
	})
	_, err := Open(path)
	assert.ErrorIs(t, err, ErrMissingManifest)
	assert.ErrorIs(t, err, ErrInvalidAPK)
}

func TestOpen_NoDexEntriesIsFatal(t *testing.T) {
	dir := t.TempDir()
	path := writeTestAPK(t, dir, map[string]string{
		"AndroidManifest.xml": "manifest-bytes",
	})
	_, err := Open(path)
	assert.ErrorIs(t, err, ErrNoDexFiles)
	assert.ErrorIs(t, err, ErrInvalidAPK)
}

func TestOpen_MissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "does-not-exist.apk"))
	assert.Error(t, err)
}

func TestDexEntryNumber(t *testing.T) {
	cases := []struct {
		name    string
		want    int
		wantOk  bool
		primary bool
	}{
		{"classes.dex", 1, true, true},
		{"classes2.dex", 2, true, false},
		{"classes15.dex", 15, true, false},
		{"weird.dex", 0, false, false},
	}
	for _, c := range cases {
		e := DexEntry{Name: c.name}
		n, ok := e.Number()
		assert.Equal(t, c.wantOk, ok, c.name)
		if ok {
			assert.Equal(t, c.want, n, c.name)
		}
		assert.Equal(t, c.primary, e.IsPrimary(), c.name)
	}
}

func TestDexSortOrder(t *testing.T) {
	dir := t.TempDir()
	path := writeTestAPK(t, dir, map[string]string{
		"AndroidManifest.xml": "m",
		"classes15.dex":       "c15",
		"classes.dex":         "c1",
		"classes2.dex":        "c2",
	})
	a, err := Open(path)
	require.NoError(t, err)

	var names []string
	for _, e := range a.DexEntries() {
		names = append(names, e.Name)
	}
	// Numeric, not lexicographic: classes15.dex sorts after classes2.dex.
	assert.Equal(t, []string{"classes.dex", "classes2.dex", "classes15.dex"}, names)
}
