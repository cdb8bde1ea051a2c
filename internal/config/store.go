package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/emcomm-tools/et-launcher/internal/fault"
)

const (
	DefaultDirMode  = 0755
	DefaultFileMode = 0644
	// PrivateFileMode is used for documents holding credentials.
	PrivateFileMode = 0600
)

// Read parses the JSON document at path into a T. Every call hits the
// filesystem; nothing is cached.
func Read[T any](path string) (T, error) {
	var value T

	data, err := readFile(path)
	if err != nil {
		return value, err
	}
	if err := json.Unmarshal(data, &value); err != nil {
		return value, fault.New(fault.Decode, "read", path, err)
	}
	return value, nil
}

// Write serializes value as JSON and replaces the document at path,
// creating parent directories as needed.
func Write[T any](path string, value T) error {
	return writeJSON(path, value, DefaultFileMode)
}

// ReadText returns the raw content of a plain-text document.
func ReadText(path string) (string, error) {
	data, err := readFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// WriteText replaces a plain-text document with content.
func WriteText(path, content string) error {
	return writeFile(path, []byte(content), DefaultFileMode)
}

// WritePrivateText is WriteText with owner-only permissions.
func WritePrivateText(path, content string) error {
	return writeFile(path, []byte(content), PrivateFileMode)
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fault.New(fault.NotFound, "read", path, err)
		}
		return nil, fault.New(fault.IO, "read", path, err)
	}
	return data, nil
}

func writeJSON(path string, value interface{}, perm os.FileMode) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fault.New(fault.Encode, "write", path, err)
	}
	return writeFile(path, data, perm)
}

func writeFile(path string, data []byte, perm os.FileMode) error {
	if err := atomicWriteFile(path, data, perm); err != nil {
		return fault.New(fault.IO, "write", path, err)
	}
	return nil
}

// atomicWriteFile writes data to a temp file in the target directory and
// renames it over path, so readers see either the old or the new document.
// Concurrent writers to the same path are last-write-wins.
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, DefaultDirMode); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tempFile, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tempPath := tempFile.Name()

	defer func() {
		if tempFile != nil {
			tempFile.Close()
			os.Remove(tempPath)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		return fmt.Errorf("failed to write data: %w", err)
	}
	if err := tempFile.Sync(); err != nil {
		return fmt.Errorf("failed to sync file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	tempFile = nil

	if err := os.Chmod(tempPath, perm); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename file: %w", err)
	}
	return nil
}
