// Package classpath resolves class names to parsed class metadata from
// the set of classes under analysis plus optional classpath roots
// (directories and jar archives).
package classpath

import (
	"archive/zip"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/phermsdorf/fb-contrib/pkg/classfile"
)

// ErrClassNotFound reports that no root could supply the requested class.
// Callers treat this as a recoverable, reportable condition.
var ErrClassNotFound = errors.New("class not found")

// Repository looks up classes by slashed binary name. It is safe for
// concurrent use; parallel per-class analyses share one repository.
type Repository struct {
	roots []string
	cache *xsync.Map[string, *classfile.Class]
}

// NewRepository creates a repository over the given roots. Each root is
// either a directory laid out by package path or a .jar archive.
func NewRepository(roots ...string) *Repository {
	return &Repository{
		roots: roots,
		cache: xsync.NewMap[string, *classfile.Class](),
	}
}

// Add registers an already-parsed class, typically one of the classes
// under analysis, so lookups between them need no classpath.
func (r *Repository) Add(cls *classfile.Class) {
	if cls == nil || cls.Name == "" {
		return
	}
	r.cache.Store(cls.Name, cls)
}

// Lookup resolves a slashed class name such as "java/util/Map".
// It returns an error wrapping ErrClassNotFound when no root has the class.
func (r *Repository) Lookup(name string) (*classfile.Class, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty name", ErrClassNotFound)
	}
	if cls, ok := r.cache.Load(name); ok {
		return cls, nil
	}
	for _, root := range r.roots {
		cls, err := r.lookupRoot(root, name)
		if err != nil {
			continue
		}
		actual, _ := r.cache.LoadOrStore(name, cls)
		return actual, nil
	}
	return nil, fmt.Errorf("%s: %w", name, ErrClassNotFound)
}

func (r *Repository) lookupRoot(root, name string) (*classfile.Class, error) {
	if strings.HasSuffix(strings.ToLower(root), ".jar") {
		return lookupJar(root, name)
	}
	path := filepath.Join(root, filepath.FromSlash(name)+".class")
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return classfile.Parse(f)
}

func lookupJar(jarPath, name string) (*classfile.Class, error) {
	zr, err := zip.OpenReader(jarPath)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	entry := name + ".class"
	for _, zf := range zr.File {
		if zf.Name != entry {
			continue
		}
		rc, err := zf.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return classfile.Parse(rc)
	}
	return nil, fmt.Errorf("%s not in %s: %w", name, jarPath, ErrClassNotFound)
}
