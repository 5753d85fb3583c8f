package security

import (
	"fmt"
	"os"
)

const (
	// PermConfigFile is for configuration files.
	// rw-r----- (0640): owner can read/write, group can read, others have no access.
	PermConfigFile os.FileMode = 0640

	// PermLogFile is for log files that may contain deployment information.
	// rw-r----- (0640): owner can read/write, group can read, others have no access.
	PermLogFile os.FileMode = 0640

	// PermDBFile is for the deployment journal database.
	// rw-r----- (0640): owner can read/write, group can read, others have no access.
	PermDBFile os.FileMode = 0640

	// PermSSHKey is for private SSH keys.
	// rw------- (0600): only owner can read/write, no one else has access.
	PermSSHKey os.FileMode = 0600
)

// CreateSecureFile creates a new file with secure permissions.
// If the file exists, it will be truncated.
func CreateSecureFile(path string, perm os.FileMode) (*os.File, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return nil, fmt.Errorf("failed to create secure file: %w", err)
	}

	// Explicitly set permissions to bypass umask
	if err := os.Chmod(path, perm); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to set file permissions: %w", err)
	}

	return file, nil
}

// IsWorldWritable checks if a file is writable by others.
func IsWorldWritable(perm os.FileMode) bool {
	return perm&0002 != 0
}

// ValidateKeyPermissions rejects private key files that other users can read
// or write. OpenSSH enforces the same rule; failing early gives a clearer
// diagnostic than a mid-push auth failure.
func ValidateKeyPermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat key file: %w", err)
	}

	perm := info.Mode().Perm()
	if perm&0077 != 0 {
		return fmt.Errorf("key file %s has too permissive permissions: %04o (expected at most %04o)", path, perm, PermSSHKey)
	}
	return nil
}
