package storage

import (
	"os"
	"path/filepath"

	"github.com/hashicorp/go-hclog"
	"github.com/yllada/vpn-settings/common"
)

// CredentialRepository stores one encoded credential blob per connection.
// Existence is checked against the filesystem on every call, since other
// processes may add or remove blobs.
type CredentialRepository struct {
	dir    string
	logger hclog.Logger
}

// NewCredentialRepository creates dir if needed.
func NewCredentialRepository(dir string, logger hclog.Logger) *CredentialRepository {
	r := &CredentialRepository{
		dir:    dir,
		logger: common.LoggerOr(logger, "credentials"),
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		r.logger.Warn("unable to create base directory for VPN credentials", "path", dir, "error", err)
	}
	return r
}

// LocationForPath maps an object path to its blob name.
func LocationForPath(path string) string {
	return lastSegment(path)
}

// Dir returns the credentials directory.
func (r *CredentialRepository) Dir() string { return r.dir }

// Exists reports whether a blob is present at location.
func (r *CredentialRepository) Exists(location string) bool {
	if location == "" {
		return false
	}
	_, err := os.Stat(filepath.Join(r.dir, location))
	return err == nil
}

// Store encodes and writes credentials. It returns false if the blob could
// not be written.
func (r *CredentialRepository) Store(location string, credentials map[string]string) bool {
	if location == "" {
		r.logger.Warn("refusing to store credentials without a location")
		return false
	}

	path := filepath.Join(r.dir, location)
	encoded, err := EncodeCredentials(credentials)
	if err != nil {
		r.logger.Warn("unable to encode credentials", "path", path, "error", err)
		return false
	}
	if err := writeFileAtomic(path, encoded, sharedFileMode); err != nil {
		r.logger.Warn("unable to write credentials file", "path", path, "error", err)
		return false
	}
	return true
}

// Remove deletes the blob at location. An absent blob counts as removed.
func (r *CredentialRepository) Remove(location string) bool {
	if !r.Exists(location) {
		return true
	}
	if err := os.Remove(filepath.Join(r.dir, location)); err != nil {
		r.logger.Warn("unable to delete credentials file", "location", location, "error", err)
		return false
	}
	return true
}

// Read returns the decoded credentials at location. Missing or unreadable
// blobs yield an empty map.
func (r *CredentialRepository) Read(location string) map[string]string {
	path := filepath.Join(r.dir, location)
	data, err := os.ReadFile(path)
	if err != nil {
		r.logger.Warn("unable to read credentials file", "path", path, "error", err)
		return map[string]string{}
	}

	credentials, err := DecodeCredentials(data)
	if err != nil {
		r.logger.Warn("invalid stored credentials", "path", path, "error", err)
		return map[string]string{}
	}
	return credentials
}
