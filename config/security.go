package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const (
	maxConfigSize = 10 << 20 // 10MB
	maxEnvVarLen  = 10000
	maxPathLen    = 4096
)

var allowedConfigExts = []string{".yaml", ".yml", ".json"}

// validateConfigPath rejects empty, oversized and escaping paths and
// anything that is not a YAML or JSON file.
func validateConfigPath(path string) error {
	if path == "" {
		return errors.New("empty config path")
	}
	if len(path) > maxPathLen {
		return fmt.Errorf("path too long: %d > %d", len(path), maxPathLen)
	}

	absPath, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("cannot resolve absolute path: %w", err)
	}

	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("cannot get working directory: %w", err)
		}
		// Relative paths must stay under the working directory
		relPath, err := filepath.Rel(cwd, absPath)
		if err != nil || relPath == ".." || strings.HasPrefix(relPath, ".."+string(filepath.Separator)) {
			return fmt.Errorf("path traversal not allowed: %s resolves outside working directory", path)
		}
	}

	ext := strings.ToLower(filepath.Ext(path))
	for _, allowed := range allowedConfigExts {
		if ext == allowed {
			return nil
		}
	}
	return fmt.Errorf("only YAML or JSON config files allowed: %s", path)
}

// safeReadFile reads a config layer after checking its path, type and size.
func safeReadFile(path string) ([]byte, error) {
	if err := validateConfigPath(path); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	switch {
	case err != nil:
		return nil, err
	case !info.Mode().IsRegular():
		return nil, fmt.Errorf("%s is not a regular file", path)
	case info.Size() > maxConfigSize:
		return nil, fmt.Errorf("%s is %d bytes, limit is %d", path, info.Size(), maxConfigSize)
	}
	return io.ReadAll(io.LimitReader(f, maxConfigSize))
}

// safeWriteFile writes a config file readable only by its owner.
func safeWriteFile(path string, data []byte) error {
	if err := validateConfigPath(path); err != nil {
		return err
	}
	if len(data) > maxConfigSize {
		return fmt.Errorf("config is %d bytes, limit is %d", len(data), maxConfigSize)
	}
	return os.WriteFile(path, data, 0600)
}

// validateEnvVar rejects oversized values and values containing NUL.
func validateEnvVar(key, value string) error {
	switch {
	case len(value) > maxEnvVarLen:
		return fmt.Errorf("%s is %d bytes, limit is %d", key, len(value), maxEnvVarLen)
	case strings.ContainsRune(value, 0):
		return fmt.Errorf("%s contains a NUL byte", key)
	}
	return nil
}
