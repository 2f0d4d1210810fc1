package errors

import (
	"regexp"
	"strings"
	"unicode"
)

// ValidatePackageName validates a package name for safety and correctness.
// It rejects names that could be used for path traversal or injection attacks.
//
// The validation rules are intentionally conservative:
//   - No empty names
//   - No control characters
//   - No path traversal sequences (.., //, etc.)
//   - No null bytes
//   - Maximum length of 256 characters
//
// Ecosystem-specific validation is layered on top by the adapters.
func ValidatePackageName(name string) error {
	if name == "" {
		return New(ErrCodeMetadata, "package name cannot be empty")
	}

	if len(name) > 256 {
		return New(ErrCodeMetadata, "package name too long (max 256 characters)")
	}

	for _, r := range name {
		if unicode.IsControl(r) {
			return New(ErrCodeMetadata, "package name contains invalid control characters")
		}
	}

	dangerousPatterns := []string{
		"..",   // Parent directory
		"//",   // Double slash
		"\x00", // Null byte
		"\\",   // Backslash (Windows path)
	}

	for _, pattern := range dangerousPatterns {
		if strings.Contains(name, pattern) {
			return New(ErrCodeMetadata, "package name contains invalid characters: %q", pattern)
		}
	}

	return nil
}

// ValidateManifestPath validates the manifest path carried by a request.
// Absolute paths are allowed because frontends address projects anywhere on
// disk; the path must still be free of control characters.
func ValidateManifestPath(path string) error {
	if path == "" {
		return New(ErrCodeConfig, "manifest path cannot be empty")
	}
	for _, r := range path {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeConfig, "manifest path contains invalid characters").WithPath(path)
		}
	}
	return nil
}

// ValidatePath validates a file path within a project for safety.
// It prevents path traversal attacks and ensures reasonable path length.
//
// Validation rules:
//   - Path cannot be empty
//   - Maximum length of 500 characters
//   - No null bytes or control characters
//   - No absolute paths (must be relative)
//   - No path traversal sequences (..)
//   - No backslashes (Windows-style paths)
func ValidatePath(path string) error {
	if path == "" {
		return New(ErrCodeConfig, "path cannot be empty")
	}

	const maxPathLength = 500
	if len(path) > maxPathLength {
		return New(ErrCodeConfig, "path too long (max %d characters)", maxPathLength).WithPath(path)
	}

	for _, r := range path {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeConfig, "path contains invalid characters").WithPath(path)
		}
	}

	if strings.HasPrefix(path, "/") {
		return New(ErrCodeConfig, "path must be relative (cannot start with /)").WithPath(path)
	}

	if strings.Contains(path, "..") {
		return New(ErrCodeConfig, "path cannot contain path traversal sequences (..)").WithPath(path)
	}

	if strings.Contains(path, "\\") {
		return New(ErrCodeConfig, "path cannot contain backslashes").WithPath(path)
	}

	return nil
}

// condaPackageNameRegex matches valid conda package names.
var condaPackageNameRegex = regexp.MustCompile(`^[a-z0-9_][a-z0-9_.-]*$`)

// ValidateCondaPackageName validates the name of the package a backend
// produces. Conda names are lowercase.
func ValidateCondaPackageName(name string) error {
	if err := ValidatePackageName(name); err != nil {
		return err
	}

	if !condaPackageNameRegex.MatchString(name) {
		return New(ErrCodeMetadata, "invalid conda package name: %q", name)
	}

	return nil
}

// pythonPackageNameRegex matches valid Python package names (PEP 508).
var pythonPackageNameRegex = regexp.MustCompile(`^([A-Za-z0-9]|[A-Za-z0-9][A-Za-z0-9._-]*[A-Za-z0-9])$`)

// ValidatePythonPackageName validates a Python package name per PEP 508.
func ValidatePythonPackageName(name string) error {
	if err := ValidatePackageName(name); err != nil {
		return err
	}

	if !pythonPackageNameRegex.MatchString(name) {
		return New(ErrCodeMetadata, "invalid Python package name: %q", name)
	}

	return nil
}

// cratesPackageNameRegex matches valid crates.io package names.
var cratesPackageNameRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_-]*$`)

// ValidateCratesPackageName validates a crates.io package name.
func ValidateCratesPackageName(name string) error {
	if err := ValidatePackageName(name); err != nil {
		return err
	}

	if !cratesPackageNameRegex.MatchString(name) {
		return New(ErrCodeMetadata, "invalid crates.io package name: %q", name)
	}

	return nil
}
