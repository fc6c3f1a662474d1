package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
)

// MaxBackups is the number of rotated copies kept beside a config file.
// The newest is "<path>.bak.1", the oldest "<path>.bak.<MaxBackups>".
const MaxBackups = 3

func backupName(path string, n int) string {
	return path + ".bak." + strconv.Itoa(n)
}

// BackupFile rotates existing backups of path up by one slot, dropping the
// oldest, and copies path into slot 1. A missing path is not backed up and
// returns "".
func BackupFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read %s for backup: %w", path, err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", path, err)
	}

	for n := MaxBackups - 1; n >= 1; n-- {
		err := os.Rename(backupName(path, n), backupName(path, n+1))
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("rotate config backups: %w", err)
		}
	}

	dst := backupName(path, 1)
	if err := os.WriteFile(dst, data, info.Mode().Perm()); err != nil {
		return "", fmt.Errorf("write backup %s: %w", dst, err)
	}
	return dst, nil
}

// ListBackups returns the backups of path that exist, newest first.
func ListBackups(path string) ([]string, error) {
	var out []string
	for n := 1; n <= MaxBackups; n++ {
		name := backupName(path, n)
		_, err := os.Stat(name)
		switch {
		case err == nil:
			out = append(out, name)
		case !errors.Is(err, fs.ErrNotExist):
			return nil, fmt.Errorf("stat %s: %w", name, err)
		}
	}
	return out, nil
}
