package storage

import (
	"os"
	"path/filepath"
	"strings"
)

// sharedFileMode lets other local processes read and remove the files.
const sharedFileMode os.FileMode = 0606

func writeFileAtomic(path string, content []byte, mode os.FileMode) error {
	tmpPath := filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+".tmp")
	if err := os.WriteFile(tmpPath, content, mode); err != nil {
		return err
	}
	if err := os.Chmod(tmpPath, mode); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}

// lastSegment returns the text after the final '/', or "" when path has none.
func lastSegment(path string) string {
	if i := strings.LastIndexByte(path, '/'); i != -1 {
		return path[i+1:]
	}
	return ""
}
