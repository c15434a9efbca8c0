// Package validation provides input validation utilities to prevent security
// vulnerabilities such as command injection, path traversal, and other
// input-based attacks. Every value that reaches a shell invocation or a
// rendered configuration file passes through here first.
package validation

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// Common validation errors.
var (
	ErrEmptyInput         = errors.New("input cannot be empty")
	ErrInvalidPackageName = errors.New("invalid package name")
	ErrInvalidServiceName = errors.New("invalid service name")
	ErrInvalidNetworkName = errors.New("invalid network name")
	ErrInvalidProjectName = errors.New("invalid project name")
	ErrInvalidHostname    = errors.New("invalid hostname")
	ErrInvalidUsername    = errors.New("invalid username")
	ErrInvalidDatabase    = errors.New("invalid database name")
	ErrInvalidEnvValue    = errors.New("invalid environment value")
	ErrPathTraversal      = errors.New("path traversal detected")
	ErrInvalidPath        = errors.New("invalid path")
	ErrCommandInjection   = errors.New("potential command injection detected")
	ErrNewlineInjection   = errors.New("newline injection detected")
)

// Compiled regex patterns for validation (compiled once for performance).
var (
	// packageNameRegex matches valid apt package names
	// Examples: "git", "docker.io", "python3-venv", "g++"
	packageNameRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._+-]*$`)

	// serviceNameRegex matches valid systemd unit base names
	// Examples: "cryonith-agent", "nginx", "getty@tty1"
	serviceNameRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_.@-]*$`)

	// networkNameRegex matches valid docker network names
	// Examples: "cryonith-net", "bridge", "trading_internal"
	networkNameRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_.-]*$`)

	// projectNameRegex matches valid docker compose project names,
	// which docker requires to be lowercase
	// Examples: "cryonith", "trading-backend"
	projectNameRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

	// hostnameRegex matches valid hostnames and mesh node names
	// Examples: "cryonith-pi", "api.cryonith.com", "192.168.1.40"
	hostnameRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9.-]*$`)

	// usernameRegex matches valid unix usernames per useradd rules
	// Examples: "pi", "ubuntu", "cryonith_deploy"
	usernameRegex = regexp.MustCompile(`^[a-z_][a-z0-9_-]*\$?$`)

	// databaseNameRegex matches postgres identifiers that need no
	// quoting. Database names are interpolated into DDL, so only this
	// shape is allowed through.
	// Examples: "cryonith", "trade_logs"
	databaseNameRegex = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

	// envValueSafeRegex matches env file values free of control characters
	envValueSafeRegex = regexp.MustCompile(`^[^\x00-\x1f\x7f]*$`)

	// shellMetaChars contains shell metacharacters that could enable injection
	shellMetaChars = []string{";", "|", "&", "$", "`", "(", ")", "{", "}", "<", ">", "\n", "\r", "\\"}
)

// ValidatePackageName validates an apt package name.
// Returns an error if the name is empty or contains invalid characters.
func ValidatePackageName(name string) error {
	if name == "" {
		return ErrEmptyInput
	}

	// Check for maximum length (reasonable limit)
	if len(name) > 256 {
		return fmt.Errorf("%w: name too long (max 256 characters)", ErrInvalidPackageName)
	}

	// Check against valid pattern
	if !packageNameRegex.MatchString(name) {
		return fmt.Errorf("%w: %q contains invalid characters", ErrInvalidPackageName, name)
	}

	// Check for shell metacharacters (defense in depth)
	if containsShellMeta(name) {
		return fmt.Errorf("%w: %q contains shell metacharacters", ErrCommandInjection, name)
	}

	return nil
}

// ValidateServiceName validates a systemd unit base name, without the
// ".service" suffix.
func ValidateServiceName(name string) error {
	if name == "" {
		return ErrEmptyInput
	}

	if len(name) > 255 {
		return fmt.Errorf("%w: service name too long", ErrInvalidServiceName)
	}

	if !serviceNameRegex.MatchString(name) {
		return fmt.Errorf("%w: %q contains invalid characters", ErrInvalidServiceName, name)
	}

	if containsShellMeta(name) {
		return fmt.Errorf("%w: %q contains shell metacharacters", ErrCommandInjection, name)
	}

	return nil
}

// ValidateNetworkName validates a docker network name.
func ValidateNetworkName(name string) error {
	if name == "" {
		return ErrEmptyInput
	}

	if len(name) > 128 {
		return fmt.Errorf("%w: network name too long", ErrInvalidNetworkName)
	}

	if !networkNameRegex.MatchString(name) {
		return fmt.Errorf("%w: %q contains invalid characters", ErrInvalidNetworkName, name)
	}

	if containsShellMeta(name) {
		return fmt.Errorf("%w: %q contains shell metacharacters", ErrCommandInjection, name)
	}

	return nil
}

// ValidateProjectName validates a docker compose project name.
func ValidateProjectName(name string) error {
	if name == "" {
		return ErrEmptyInput
	}

	if len(name) > 128 {
		return fmt.Errorf("%w: project name too long", ErrInvalidProjectName)
	}

	if !projectNameRegex.MatchString(name) {
		return fmt.Errorf("%w: %q must be lowercase alphanumeric with hyphens or underscores", ErrInvalidProjectName, name)
	}

	if containsShellMeta(name) {
		return fmt.Errorf("%w: %q contains shell metacharacters", ErrCommandInjection, name)
	}

	return nil
}

// ValidateHostname validates a hostname, mesh node name, or nginx
// server name.
func ValidateHostname(hostname string) error {
	if hostname == "" {
		return ErrEmptyInput
	}

	if len(hostname) > 253 {
		return fmt.Errorf("%w: hostname too long", ErrInvalidHostname)
	}

	if !hostnameRegex.MatchString(hostname) {
		return fmt.Errorf("%w: %q contains invalid characters", ErrInvalidHostname, hostname)
	}

	if containsShellMeta(hostname) {
		return fmt.Errorf("%w: %q contains shell metacharacters", ErrCommandInjection, hostname)
	}

	return nil
}

// ValidateUsername validates a unix username used for chown and the
// systemd User= directive.
func ValidateUsername(name string) error {
	if name == "" {
		return ErrEmptyInput
	}

	// useradd caps usernames at 32 characters
	if len(name) > 32 {
		return fmt.Errorf("%w: username too long (max 32 characters)", ErrInvalidUsername)
	}

	if !usernameRegex.MatchString(name) {
		return fmt.Errorf("%w: %q is not a valid unix username", ErrInvalidUsername, name)
	}

	if containsShellMeta(name) {
		return fmt.Errorf("%w: %q contains shell metacharacters", ErrCommandInjection, name)
	}

	return nil
}

// ValidateDatabaseName validates a postgres database or table name
// destined for interpolation into DDL.
func ValidateDatabaseName(name string) error {
	if name == "" {
		return ErrEmptyInput
	}

	// postgres truncates identifiers at 63 bytes
	if len(name) > 63 {
		return fmt.Errorf("%w: name too long (max 63 characters)", ErrInvalidDatabase)
	}

	if !databaseNameRegex.MatchString(name) {
		return fmt.Errorf("%w: %q must be lowercase alphanumeric with underscores", ErrInvalidDatabase, name)
	}

	return nil
}

// ValidateEnvValue validates a value destined for a rendered env file.
// A newline in a value would inject additional variables into the file.
func ValidateEnvValue(value string) error {
	if strings.ContainsAny(value, "\n\r") {
		return fmt.Errorf("%w: env value contains newlines", ErrNewlineInjection)
	}

	if !envValueSafeRegex.MatchString(value) {
		return fmt.Errorf("%w: contains control characters", ErrInvalidEnvValue)
	}

	return nil
}

// ValidatePath validates a file path and prevents path traversal attacks.
func ValidatePath(path string) error {
	if path == "" {
		return ErrEmptyInput
	}

	// Check for null bytes
	if strings.Contains(path, "\x00") {
		return fmt.Errorf("%w: path contains null byte", ErrInvalidPath)
	}

	// Check for path traversal sequences
	if containsPathTraversal(path) {
		return fmt.Errorf("%w: %q contains traversal sequence", ErrPathTraversal, path)
	}

	return nil
}

// ValidatePathWithBase validates a path is within the expected base
// directory. This is the recommended function for file operations under
// the install root.
func ValidatePathWithBase(path, basePath string) error {
	if err := ValidatePath(path); err != nil {
		return err
	}

	cleanPath := filepath.Clean(path)
	cleanBase := filepath.Clean(basePath)

	if cleanPath != cleanBase && !strings.HasPrefix(cleanPath, cleanBase+string(filepath.Separator)) {
		return fmt.Errorf("%w: path %q escapes base directory %q", ErrPathTraversal, path, basePath)
	}

	return nil
}

// containsShellMeta checks if a string contains shell metacharacters.
func containsShellMeta(s string) bool {
	for _, char := range shellMetaChars {
		if strings.Contains(s, char) {
			return true
		}
	}
	return false
}

// containsPathTraversal checks for common path traversal patterns.
func containsPathTraversal(path string) bool {
	// Normalize the path to catch encoded traversal attempts
	normalized := filepath.Clean(path)

	// Check for ".." sequences in the normalized path
	segments := strings.Split(normalized, string(filepath.Separator))
	for _, seg := range segments {
		if seg == ".." {
			return true
		}
	}

	// Check for URL-encoded traversal
	if strings.Contains(path, "%2e%2e") || strings.Contains(path, "%2E%2E") {
		return true
	}

	return false
}
