package request

import "path/filepath"

type CreateLoadRun struct {
	ClusterIdentifier string `json:"cluster_identifier" validate:"required,cluster_id"`
	Bucket            string `json:"bucket" validate:"required,bucket"`
	// Key defaults to the base name of LocalPath.
	Key string `json:"key" validate:"omitempty,max=1024"`
	// LocalPath is relative to the worker's artifact root.
	LocalPath string `json:"local_path" validate:"required,max=1024,artifact_path"`
}

// ObjectKey returns the S3 key the run uploads to.
func (c CreateLoadRun) ObjectKey() string {
	if c.Key != "" {
		return c.Key
	}
	return filepath.Base(c.LocalPath)
}
