package fbcontrib_test

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phermsdorf/fb-contrib/internal/classgen"
	"github.com/phermsdorf/fb-contrib/pkg/fbcontrib"
)

func writeClass(t *testing.T, dir string, b *classgen.Builder) string {
	t.Helper()
	path := filepath.Join(dir, filepath.Base(b.ClassName())+".class")
	require.NoError(t, os.WriteFile(path, b.Bytes(), 0o644))
	return path
}

func writeJar(t *testing.T, path string, builders ...*classgen.Builder) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for _, b := range builders {
		w, err := zw.Create(b.ClassName() + ".class")
		require.NoError(t, err)
		_, err = w.Write(b.Bytes())
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
}

func TestLoadClasses_DirectoryRecursive(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "com", "example")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	writeClass(t, sub, classgen.NewClass("com/example/Beta"))
	writeClass(t, dir, classgen.NewClass("com/example/Alpha"))
	// Non-class files inside a directory are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("x"), 0o644))

	classes, err := fbcontrib.LoadClasses(t.Context(), fbcontrib.LoaderOptions{Paths: []string{dir}})
	require.NoError(t, err)
	require.Len(t, classes, 2)
	assert.Equal(t, "com/example/Alpha", classes[0].Name, "classes are sorted by name")
	assert.Equal(t, "com/example/Beta", classes[1].Name)
}

func TestLoadClasses_Jar(t *testing.T) {
	jar := filepath.Join(t.TempDir(), "app.jar")
	writeJar(t, jar,
		classgen.NewClass("com/example/One"),
		classgen.NewClass("com/example/Two"))

	classes, err := fbcontrib.LoadClasses(t.Context(), fbcontrib.LoaderOptions{Paths: []string{jar}})
	require.NoError(t, err)
	assert.Len(t, classes, 2)
}

func TestLoadClasses_SingleFile(t *testing.T) {
	dir := t.TempDir()
	path := writeClass(t, dir, classgen.NewClass("com/example/Solo"))

	classes, err := fbcontrib.LoadClasses(t.Context(), fbcontrib.LoaderOptions{Paths: []string{path}})
	require.NoError(t, err)
	require.Len(t, classes, 1)
	assert.Equal(t, "com/example/Solo", classes[0].Name)
}

func TestLoadClasses_SkipsCorruptFiles(t *testing.T) {
	dir := t.TempDir()
	writeClass(t, dir, classgen.NewClass("com/example/Good"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Bad.class"), []byte("not a class"), 0o644))

	classes, err := fbcontrib.LoadClasses(t.Context(), fbcontrib.LoaderOptions{Paths: []string{dir}})
	require.NoError(t, err)
	require.Len(t, classes, 1)
	assert.Equal(t, "com/example/Good", classes[0].Name)
}

func TestLoadClasses_Errors(t *testing.T) {
	t.Run("no paths", func(t *testing.T) {
		_, err := fbcontrib.LoadClasses(t.Context(), fbcontrib.LoaderOptions{})
		assert.Error(t, err)
	})

	t.Run("missing path", func(t *testing.T) {
		_, err := fbcontrib.LoadClasses(t.Context(), fbcontrib.LoaderOptions{
			Paths: []string{filepath.Join(t.TempDir(), "nope")},
		})
		assert.Error(t, err)
	})

	t.Run("unsupported explicit file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "data.txt")
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
		_, err := fbcontrib.LoadClasses(t.Context(), fbcontrib.LoaderOptions{Paths: []string{path}})
		assert.Error(t, err)
	})

	t.Run("nothing parsable", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "Bad.class"), []byte("junk"), 0o644))
		_, err := fbcontrib.LoadClasses(t.Context(), fbcontrib.LoaderOptions{Paths: []string{dir}})
		assert.Error(t, err)
	})
}
