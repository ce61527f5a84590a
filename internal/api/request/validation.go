package request

import (
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Redshift cluster identifiers: lowercase alphanumerics and hyphens, starting
// with a letter, no trailing or doubled hyphen.
var clusterIDRegex = regexp.MustCompile(`^[a-z][a-z0-9-]{0,62}$`)

// S3 bucket names as accepted by PutObject in every region.
var bucketRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{1,61}[a-z0-9]$`)

func init() {
	validate.RegisterValidation("cluster_id", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return clusterIDRegex.MatchString(s) && !strings.HasSuffix(s, "-") && !strings.Contains(s, "--")
	})
	validate.RegisterValidation("bucket", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return bucketRegex.MatchString(s) && !strings.Contains(s, "..")
	})
	// Artifact paths are relative to the worker's artifact root and may not
	// climb out of it.
	validate.RegisterValidation("artifact_path", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return filepath.IsLocal(s) && !strings.Contains(s, `\`)
	})
}

func Decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("validation error: %w", err)
	}
	return nil
}

func RequireID(s string) (string, error) {
	if s == "" {
		return "", fmt.Errorf("missing required ID")
	}
	return s, nil
}
