// Package entrylist loads WELF entry-list files: comma separated entry IDs,
// deduplicated in first-seen order.
package entrylist

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/JakeFAU/wowhead-parser/internal/crawler"
)

// DefaultExtension is the file extension used by WELF files.
const DefaultExtension = ".welf"

// List is an immutable ordered set of entry IDs.
type List struct {
	ids []crawler.EntryID
}

// Parse builds a List from WELF text. Tokens that are not unsigned integers
// are dropped, as are repeated IDs.
func Parse(text string) *List {
	tokens := strings.Split(text, ",")
	seen := make(map[crawler.EntryID]struct{}, len(tokens))
	ids := make([]crawler.EntryID, 0, len(tokens))
	for _, token := range tokens {
		// One explicit plus sign is accepted, as in "+5".
		value, err := strconv.ParseUint(strings.TrimPrefix(strings.TrimSpace(token), "+"), 10, 32)
		if err != nil {
			continue
		}
		id := crawler.EntryID(value)
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return &List{ids: ids}
}

// Load reads and parses the WELF file at path.
func Load(path string) (*List, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read entry list %s: %w", path, err)
	}
	return Parse(string(data)), nil
}

// Count returns the number of unique entries.
func (l *List) Count() int {
	if l == nil {
		return 0
	}
	return len(l.ids)
}

// IDs returns a copy of the entries in first-seen order.
func (l *List) IDs() []crawler.EntryID {
	if l == nil {
		return nil
	}
	return append([]crawler.EntryID(nil), l.ids...)
}

// Discover walks root and returns the paths, relative to root, of every file
// carrying ext. A missing root yields an empty result.
func Discover(root, ext string) ([]string, error) {
	if ext == "" {
		ext = DefaultExtension
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ext) {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return fmt.Errorf("relative path for %s: %w", path, err)
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("scan entry lists in %s: %w", root, err)
	}
	sort.Strings(files)
	return files, nil
}

// Resolve joins name onto dir unless name is already a path to an existing file.
func Resolve(dir, name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	if _, err := os.Stat(name); err == nil && strings.ContainsRune(name, filepath.Separator) {
		return name
	}
	return filepath.Join(dir, name)
}
