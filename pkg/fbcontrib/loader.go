// Package fbcontrib provides the public entry points for running the
// bytecode detectors: class loading and analysis orchestration.
package fbcontrib

import (
	"archive/zip"
	"cmp"
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	goruntime "runtime"
	"slices"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/phermsdorf/fb-contrib/pkg/classfile"
)

// LoaderOptions configures class loading behavior.
type LoaderOptions struct {
	// Paths are the inputs to scan: directories (searched recursively),
	// individual .class files, and .jar archives.
	Paths []string

	// Workers bounds concurrent parsing. <= 0 selects NumCPU.
	Workers int
}

// LoadClasses parses every class file reachable from the given paths.
// Individual parse failures are logged and skipped; loading fails only
// when an input path is unusable or nothing could be parsed at all.
func LoadClasses(ctx context.Context, opts LoaderOptions) ([]*classfile.Class, error) {
	if len(opts.Paths) == 0 {
		return nil, fmt.Errorf("no input paths provided")
	}

	var classFiles, jarFiles []string
	for _, path := range opts.Paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", path, err)
		}
		if !info.IsDir() {
			if err := bucketFile(path, &classFiles, &jarFiles); err != nil {
				return nil, err
			}
			continue
		}
		err = fs.WalkDir(os.DirFS(path), ".", func(sub string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return err
			}
			full := path + string(os.PathSeparator) + sub
			// Unrecognized files inside a directory are just skipped.
			_ = bucketFile(full, &classFiles, &jarFiles)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking %s: %w", path, err)
		}
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = goruntime.NumCPU()
	}

	var (
		mu      sync.Mutex
		classes []*classfile.Class
	)
	add := func(cls *classfile.Class) {
		mu.Lock()
		classes = append(classes, cls)
		mu.Unlock()
	}

	var wg errgroup.Group
	wg.SetLimit(workers)
	for _, path := range classFiles {
		wg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			cls, err := parseClassFile(path)
			if err != nil {
				slog.Warn("skipping unparsable class file", "path", path, "error", err)
				return nil
			}
			add(cls)
			return nil
		})
	}
	for _, path := range jarFiles {
		wg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			parsed, err := parseJar(path)
			if err != nil {
				slog.Warn("skipping unreadable jar", "path", path, "error", err)
				return nil
			}
			for _, cls := range parsed {
				add(cls)
			}
			return nil
		})
	}
	if err := wg.Wait(); err != nil {
		return nil, err
	}

	if len(classes) == 0 {
		return nil, fmt.Errorf("no class files found under: %v", opts.Paths)
	}

	// Deterministic order so analysis output is stable across runs.
	slices.SortFunc(classes, func(a, b *classfile.Class) int {
		return cmp.Compare(a.Name, b.Name)
	})
	return classes, nil
}

func bucketFile(path string, classFiles, jarFiles *[]string) error {
	switch {
	case strings.HasSuffix(path, ".class"):
		*classFiles = append(*classFiles, path)
	case strings.HasSuffix(strings.ToLower(path), ".jar"):
		*jarFiles = append(*jarFiles, path)
	default:
		return fmt.Errorf("%s: not a .class file or .jar archive", path)
	}
	return nil
}

func parseClassFile(path string) (*classfile.Class, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return classfile.Parse(f)
}

func parseJar(path string) ([]*classfile.Class, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	var out []*classfile.Class
	for _, zf := range zr.File {
		if !strings.HasSuffix(zf.Name, ".class") {
			continue
		}
		rc, err := zf.Open()
		if err != nil {
			slog.Warn("skipping unreadable jar entry", "jar", path, "entry", zf.Name, "error", err)
			continue
		}
		cls, err := classfile.Parse(rc)
		rc.Close()
		if err != nil {
			slog.Warn("skipping unparsable jar entry", "jar", path, "entry", zf.Name, "error", err)
			continue
		}
		out = append(out, cls)
	}
	return out, nil
}
