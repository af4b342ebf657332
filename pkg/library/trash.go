package library

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// XDGTrash moves paths into the freedesktop trash directory
// ($XDG_DATA_HOME/Trash, defaulting to ~/.local/share/Trash).
type XDGTrash struct {
	// Dir overrides the trash directory; empty means the XDG default.
	Dir string
}

func (t XDGTrash) trashDir() (string, error) {
	if t.Dir != "" {
		return t.Dir, nil
	}
	if data := os.Getenv("XDG_DATA_HOME"); data != "" {
		return filepath.Join(data, "Trash"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "share", "Trash"), nil
}

// MoveToTrash renames path into Trash/files and writes the matching
// .trashinfo entry. Rename only works within a filesystem; a
// cross-device library should be removed with --no-trash instead.
func (t XDGTrash) MoveToTrash(path string) error {
	trash, err := t.trashDir()
	if err != nil {
		return err
	}
	filesDir := filepath.Join(trash, "files")
	infoDir := filepath.Join(trash, "info")
	for _, d := range []string{filesDir, infoDir} {
		if err := os.MkdirAll(d, 0o700); err != nil {
			return err
		}
	}

	base := filepath.Base(path)
	name := base
	for i := 2; ; i++ {
		if _, err := os.Lstat(filepath.Join(filesDir, name)); os.IsNotExist(err) {
			break
		}
		name = fmt.Sprintf("%s.%d", base, i)
	}

	info := fmt.Sprintf("[Trash Info]\nPath=%s\nDeletionDate=%s\n",
		path, time.Now().Format("2006-01-02T15:04:05"))
	infoPath := filepath.Join(infoDir, name+".trashinfo")
	if err := os.WriteFile(infoPath, []byte(info), 0o600); err != nil {
		return err
	}

	if err := os.Rename(path, filepath.Join(filesDir, name)); err != nil {
		_ = os.Remove(infoPath)
		return err
	}
	return nil
}
