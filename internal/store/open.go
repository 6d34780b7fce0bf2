package store

import (
	"fmt"

	"github.com/gorewood/microfactory/internal/config"
)

// Open builds the backend selected by cfg.Backend.
func Open(cfg config.StoreConfig) (Store, error) {
	switch cfg.Backend {
	case config.BackendGitHub, "":
		return NewGitHub(GitHubOptions{
			BaseURL:    cfg.BaseURL,
			Token:      cfg.Token,
			Repository: cfg.Repository,
			Branch:     cfg.Branch,
			Timeout:    cfg.Timeout,
		})
	case config.BackendDir:
		return NewDir(cfg.Dir)
	case config.BackendS3:
		return NewS3(S3Options{
			Endpoint:  cfg.S3.Endpoint,
			Region:    cfg.S3.Region,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Bucket:    cfg.S3.Bucket,
			Prefix:    cfg.S3.Prefix,
			UseSSL:    cfg.S3.UseSSL,
		})
	case config.BackendMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}
