// Package storage persists the per-connection state connman cannot hold:
// auto-connect tokens and stored credentials. Both live as files named
// after the final segment of the connection's object path, so other
// processes on the device can read them.
package storage

import (
	"os"
	"path/filepath"

	"github.com/hashicorp/go-hclog"
	"github.com/yllada/vpn-settings/common"
)

// TokenRepository tracks zero-length marker files whose presence enables
// automatic connection. The set of tokens is cached at construction and
// kept in sync by the repository's own writes.
type TokenRepository struct {
	dir    string
	tokens map[string]struct{}
	logger hclog.Logger
}

// NewTokenRepository creates dir if needed and loads the existing tokens.
// A directory that cannot be created is logged and yields an empty cache.
func NewTokenRepository(dir string, logger hclog.Logger) *TokenRepository {
	r := &TokenRepository{
		dir:    dir,
		tokens: make(map[string]struct{}),
		logger: common.LoggerOr(logger, "tokens"),
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		r.logger.Warn("unable to create base directory for VPN token files", "path", dir, "error", err)
		return r
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		r.logger.Warn("unable to list token directory", "path", dir, "error", err)
		return r
	}
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil || info.Size() != 0 {
			continue
		}
		r.tokens[e.Name()] = struct{}{}
	}
	return r
}

// TokenForPath maps an object path to its token name.
func TokenForPath(path string) string {
	return lastSegment(path)
}

// Dir returns the token directory.
func (r *TokenRepository) Dir() string { return r.dir }

// Exists reports whether token is known to the cache.
func (r *TokenRepository) Exists(token string) bool {
	_, ok := r.tokens[token]
	return ok
}

// Ensure creates the token file if it is not already cached.
func (r *TokenRepository) Ensure(token string) {
	if token == "" || r.Exists(token) {
		return
	}

	path := filepath.Join(r.dir, token)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, sharedFileMode)
	if err != nil {
		r.logger.Warn("unable to write token file", "path", path, "error", err)
		return
	}
	f.Close()
	if err := os.Chmod(path, sharedFileMode); err != nil {
		r.logger.Warn("unable to set token file permissions", "path", path, "error", err)
	}
	r.tokens[token] = struct{}{}
}

// Remove deletes a cached token. A failed delete keeps the cache entry.
func (r *TokenRepository) Remove(token string) {
	if !r.Exists(token) {
		return
	}
	if err := os.Remove(filepath.Join(r.dir, token)); err != nil && !os.IsNotExist(err) {
		r.logger.Warn("unable to delete token file", "token", token, "error", err)
		return
	}
	delete(r.tokens, token)
}

// PruneExcept drops every cached token not listed in known.
func (r *TokenRepository) PruneExcept(known []string) {
	keep := make(map[string]struct{}, len(known))
	for _, k := range known {
		keep[k] = struct{}{}
	}
	for token := range r.tokens {
		if _, ok := keep[token]; ok {
			continue
		}
		if err := os.Remove(filepath.Join(r.dir, token)); err != nil && !os.IsNotExist(err) {
			r.logger.Debug("unable to prune token file", "token", token, "error", err)
		}
		delete(r.tokens, token)
	}
}
