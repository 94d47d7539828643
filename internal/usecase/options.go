package usecase

import (
	"fmt"
	"strconv"

	"github.com/Velocity-Developer/newads/internal/domain"
)

// StageOptions configures a single stage invocation.
type StageOptions struct {
	// BatchSize caps the number of items processed; 0 means unlimited.
	BatchSize int
	// Mode is only read by the submission stages.
	Mode domain.Mode
}

// Validate rejects negative batch sizes and unknown modes.
func (o StageOptions) Validate() error {
	if o.BatchSize < 0 {
		return fmt.Errorf("batch size must be >= 0, got %d", o.BatchSize)
	}
	if o.Mode != "" && o.Mode != domain.ModeValidate && o.Mode != domain.ModeExecute {
		return fmt.Errorf("unknown mode %q", o.Mode)
	}
	return nil
}

func (o StageOptions) asMap() map[string]string {
	m := map[string]string{"batch-size": strconv.Itoa(o.BatchSize)}
	if o.Mode != "" {
		m["mode"] = string(o.Mode)
	}
	return m
}
