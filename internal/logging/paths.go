package logging

import (
	"fmt"
	"os"
	"path/filepath"
)

// LogFileName is the active log file name; rotated files append .1, .2, ...
const LogFileName = "msgindex.log"

// LogDir returns the log directory under the msgindex home directory.
func LogDir(home string) string {
	return filepath.Join(home, "logs")
}

// LogPath returns the active log file under home.
func LogPath(home string) string {
	return filepath.Join(LogDir(home), LogFileName)
}

// FindLogFile returns explicit when given, else the log under home. It
// fails when the file does not exist.
func FindLogFile(explicit, home string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("log file not found: %s", explicit)
		}
		return explicit, nil
	}

	path := LogPath(home)
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("no log file found at %s\nRun any msgindex command (e.g. `msgindex stats`) to create it", path)
	}
	return path, nil
}
