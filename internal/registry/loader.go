// Package registry lists model files available to a slot.
package registry

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"buddyd/internal/common/fsutil"
	"buddyd/pkg/types"
)

// maxDepth bounds the directory walk; model folders are usually flat or one
// level of vendor directories.
const maxDepth = 3

// Scanner finds model files by extension under a directory.
type Scanner struct {
	Extensions []string
	// CompanionExt, when set, must exist next to a model file (e.g. piper voices
	// need <voice>.onnx.json).
	CompanionExt string
}

// NewScanner returns a scanner for the given extensions. ".onnx" implies a
// ".json" companion.
func NewScanner(exts ...string) *Scanner {
	s := &Scanner{}
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		s.Extensions = append(s.Extensions, e)
		if e == ".onnx" {
			s.CompanionExt = ".json"
		}
	}
	return s
}

// Scan walks dir and returns matching models sorted by ID. Hidden directories
// are skipped.
func (s *Scanner) Scan(dir string) ([]types.Model, error) {
	base, err := fsutil.ExpandHome(dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	if _, err := os.Stat(abs); err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var models []types.Model
	err = filepath.WalkDir(abs, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == abs {
				return err
			}
			return nil
		}
		if d.IsDir() {
			if p != abs && (strings.HasPrefix(d.Name(), ".") || depth(abs, p) >= maxDepth) {
				return filepath.SkipDir
			}
			return nil
		}
		if !s.matches(d.Name()) {
			return nil
		}
		m := types.Model{ID: relID(abs, p), Path: p}
		if info, err := d.Info(); err == nil {
			m.SizeBytes = info.Size()
		}
		if s.CompanionExt != "" {
			cp := p + s.CompanionExt
			if !fsutil.PathExists(cp) {
				return nil
			}
			m.ConfigPath = cp
		}
		models = append(models, m)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	sort.Slice(models, func(i, j int) bool { return models[i].ID < models[j].ID })
	return models, nil
}

func (s *Scanner) matches(name string) bool {
	lower := strings.ToLower(name)
	for _, e := range s.Extensions {
		if strings.HasSuffix(lower, e) {
			return true
		}
	}
	return false
}

func depth(root, p string) int {
	rel, err := filepath.Rel(root, p)
	if err != nil || rel == "." {
		return 0
	}
	return strings.Count(filepath.ToSlash(rel), "/") + 1
}

// relID is the slash-separated path below root, usable as a relative model path.
func relID(root, p string) string {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return filepath.Base(p)
	}
	return filepath.ToSlash(rel)
}

// LoadDir scans dir for *.gguf files.
func LoadDir(dir string) ([]types.Model, error) {
	return NewScanner(".gguf").Scan(dir)
}
