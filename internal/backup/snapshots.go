package backup

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// SnapshotInfo summarizes a snapshot folder on disk.
type SnapshotInfo struct {
	Name     string
	Path     string
	Files    int
	Bytes    int64
	Modified time.Time
}

// List returns the snapshot folders under dir sorted by name. A missing
// directory yields an empty list.
func List(dir string) ([]SnapshotInfo, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read backup dir: %w", err)
	}

	var out []SnapshotInfo
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), Prefix) {
			continue
		}
		info := SnapshotInfo{Name: entry.Name(), Path: filepath.Join(dir, entry.Name())}
		if stat, err := entry.Info(); err == nil {
			info.Modified = stat.ModTime()
		}
		files, err := collectionFiles(info.Path)
		if err != nil {
			return nil, err
		}
		for _, file := range files {
			info.Files++
			if stat, err := os.Stat(file); err == nil {
				info.Bytes += stat.Size()
			}
		}
		out = append(out, info)
	}
	return out, nil
}

// Resolve returns the path of a named snapshot under dir.
func Resolve(dir, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || name != filepath.Base(name) || !strings.HasPrefix(name, Prefix) {
		return "", fmt.Errorf("%w: %q", ErrSnapshotNotFound, name)
	}
	path := filepath.Join(dir, name)
	stat, err := os.Stat(path)
	if err != nil || !stat.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrSnapshotNotFound, name)
	}
	return path, nil
}

func collectionFiles(folder string) ([]string, error) {
	entries, err := os.ReadDir(folder)
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", filepath.Base(folder), err)
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), fileExt) {
			continue
		}
		files = append(files, filepath.Join(folder, entry.Name()))
	}
	return files, nil
}
