package knowledge

import (
	"bufio"
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

// DefaultMaxFileBytes caps the size of a single loaded document.
const DefaultMaxFileBytes = 256 * 1024

// LoadOptions configures LoadDir.
type LoadOptions struct {
	MaxFileBytes int64
	// Extra gitignore-style patterns applied on top of the root .gitignore.
	Ignore []string
}

// LoadDir reads every text file under root into Knowledge, keyed by
// slash-separated relative path. The root .gitignore is honored, .git is
// always skipped, and binary or oversized files are left out.
func LoadDir(root string, opts LoadOptions) (Knowledge, error) {
	if opts.MaxFileBytes <= 0 {
		opts.MaxFileBytes = DefaultMaxFileBytes
	}

	patterns, err := readIgnore(filepath.Join(root, ".gitignore"))
	if err != nil {
		return Knowledge{}, fmt.Errorf("read .gitignore: %w", err)
	}
	for _, p := range opts.Ignore {
		patterns = append(patterns, gitignore.ParsePattern(p, nil))
	}
	matcher := gitignore.NewMatcher(patterns)

	docs := make(map[string]string)
	fsys := os.DirFS(root)
	err = fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == "." {
			return nil
		}
		if d.IsDir() && d.Name() == ".git" {
			return fs.SkipDir
		}
		if matcher.Match(strings.Split(p, "/"), d.IsDir()) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.Size() > opts.MaxFileBytes {
			return nil
		}
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return fmt.Errorf("read %s: %w", p, err)
		}
		if bytes.IndexByte(data, 0) >= 0 {
			return nil
		}
		docs[p] = string(data)
		return nil
	})
	if err != nil {
		return Knowledge{}, err
	}
	return New(docs), nil
}

func readIgnore(file string) ([]gitignore.Pattern, error) {
	f, err := os.Open(file)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var patterns []gitignore.Pattern
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, gitignore.ParsePattern(line, nil))
	}
	return patterns, scanner.Err()
}
