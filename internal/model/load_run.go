package model

import "time"

type LoadRun struct {
	ID                string    `json:"id" db:"id"`
	ClusterIdentifier string    `json:"cluster_identifier" db:"cluster_identifier"`
	Bucket            string    `json:"bucket" db:"bucket"`
	Key               string    `json:"key" db:"key"`
	LocalPath         string    `json:"local_path" db:"local_path"`
	Status            string    `json:"status" db:"status"`
	StatusMessage     *string   `json:"status_message,omitempty" db:"status_message"`
	ClusterStatus     string    `json:"cluster_status" db:"cluster_status"`
	RowsLoaded        int64     `json:"rows_loaded" db:"rows_loaded"`
	LoadErrors        int64     `json:"load_errors" db:"load_errors"`
	LoadErrorsChecked bool      `json:"load_errors_checked" db:"load_errors_checked"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time `json:"updated_at" db:"updated_at"`
}

// Artifact returns the artifact the run uploads and loads.
func (r LoadRun) Artifact() LoadArtifact {
	return LoadArtifact{LocalPath: r.LocalPath, Bucket: r.Bucket, Key: r.Key}
}
