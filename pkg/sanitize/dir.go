package sanitize

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

type DirOptions struct {
	Mode string
	// DryRun reports diffs without writing files.
	DryRun bool
}

// FileResult describes one emitted file that the sanitizer changed.
type FileResult struct {
	Path string
	Diff string
}

// Dir sanitizes every emitted script under root. It is a no-op outside
// production mode.
func Dir(root string, opts DirOptions) ([]FileResult, error) {
	if opts.Mode != ModeProduction {
		return nil, nil
	}

	dmp := diffmatchpatch.New()
	var results []FileResult

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isScript(path) {
			return nil
		}

		raw, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		original := string(raw)
		rewritten := Rewrite(original)
		if rewritten == original {
			return nil
		}

		result := FileResult{Path: path}
		if opts.DryRun {
			result.Diff = dmp.DiffPrettyText(dmp.DiffCleanupSemantic(dmp.DiffMain(original, rewritten, false)))
		} else {
			info, err := d.Info()
			if err != nil {
				return err
			}
			if err := os.WriteFile(path, []byte(rewritten), info.Mode().Perm()); err != nil {
				return fmt.Errorf("write %s: %w", path, err)
			}
		}
		results = append(results, result)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

func isScript(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".js", ".mjs", ".cjs":
		return true
	}
	return false
}
