package loader

import (
	"fmt"

	"github.com/edvin/warehouse/internal/model"
)

// CopyError is returned when COPY fails. LoadErrors holds what
// stl_load_errors recorded for the table, when that could be read.
type CopyError struct {
	Source     string
	LoadErrors []model.LoadError
	Err        error
}

func (e *CopyError) Error() string {
	if len(e.LoadErrors) == 0 {
		return e.Err.Error()
	}
	return fmt.Sprintf("%v (%d load errors, first: line %d: %s)",
		e.Err, len(e.LoadErrors), e.LoadErrors[0].LineNumber, e.LoadErrors[0].ErrReason)
}

func (e *CopyError) Unwrap() error {
	return e.Err
}
