package session

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"binder/internal/fileutil"
)

// FileInfo summarizes one session file on disk.
type FileInfo struct {
	Path    string    `json:"path"`
	Name    string    `json:"name"`
	SavedAt time.Time `json:"saved_at"`
	Entries int       `json:"entries"`
}

// List returns the session files under dir, newest first. Workbooks that do
// not parse as sessions are ignored so exports and scratch files can share
// the directory.
func List(dir string) ([]FileInfo, error) {
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read session dir: %w", err)
	}

	var infos []FileInfo
	for _, entry := range dirEntries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.EqualFold(filepath.Ext(name), ".xlsx") || strings.HasPrefix(name, "~$") {
			continue
		}
		path := filepath.Join(dir, name)
		sess, err := Read(path)
		if err != nil {
			continue
		}
		infos = append(infos, FileInfo{
			Path:    path,
			Name:    name,
			SavedAt: sess.SavedAt,
			Entries: len(sess.Entries),
		})
	}

	sort.Slice(infos, func(i, j int) bool {
		if !infos[i].SavedAt.Equal(infos[j].SavedAt) {
			return infos[i].SavedAt.After(infos[j].SavedAt)
		}
		return infos[i].Name < infos[j].Name
	})
	return infos, nil
}

// Export copies a session file to dest with checksum verification. When dest
// is an existing directory the source file name is kept.
func Export(src, dest string) (string, error) {
	if _, err := Read(src); err != nil {
		return "", err
	}
	if fi, err := os.Stat(dest); err == nil && fi.IsDir() {
		dest = filepath.Join(dest, filepath.Base(src))
	}
	if err := fileutil.CopyFileVerified(src, dest); err != nil {
		return "", fmt.Errorf("export session: %w", err)
	}
	return dest, nil
}
