package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultFilename is used when a title sanitises to nothing.
const DefaultFilename = "track"

const illegalFilenameChars = `<>:"/\|?*`

var reservedNames = map[string]bool{
	"CON": true, "PRN": true, "AUX": true, "NUL": true,
	"COM1": true, "COM2": true, "COM3": true, "COM4": true, "COM5": true,
	"COM6": true, "COM7": true, "COM8": true, "COM9": true,
	"LPT1": true, "LPT2": true, "LPT3": true, "LPT4": true, "LPT5": true,
	"LPT6": true, "LPT7": true, "LPT8": true, "LPT9": true,
}

// SanitizeFilename turns a track title into a filename that is safe on
// Windows, macOS and Linux. The result never contains a path separator.
func SanitizeFilename(name string) string {
	cleaned := strings.Map(func(r rune) rune {
		if strings.ContainsRune(illegalFilenameChars, r) || r < 0x20 {
			return -1
		}
		return r
	}, name)
	cleaned = strings.Trim(cleaned, " \t.")

	if cleaned == "" {
		return DefaultFilename
	}
	if reservedNames[strings.ToUpper(cleaned)] {
		cleaned += "_"
	}
	return cleaned
}

// EnsureDir creates dir and its parents if missing.
func EnsureDir(dir string) error {
	if dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}
	return nil
}

// FileSize returns the size of path in bytes.
func FileSize(path string) (int64, error) {
	info, err := os.Stat(filepath.Clean(path))
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}
