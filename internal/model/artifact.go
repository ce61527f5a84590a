package model

// LoadArtifact is a local file and the object-store location it is uploaded to.
type LoadArtifact struct {
	LocalPath string `json:"local_path"`
	Bucket    string `json:"bucket"`
	Key       string `json:"key"`
}

// S3URI returns the s3:// location COPY reads from.
func (a LoadArtifact) S3URI() string {
	return "s3://" + a.Bucket + "/" + a.Key
}
