package covenant

import (
	"fmt"
	"math"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Validate checks that a definition carries a name, a known operator and
// category, and a finite threshold.
func Validate(d Definition) error {
	validateOnce.Do(func() {
		validate = validator.New()
	})
	if err := validate.Struct(d); err != nil {
		return fmt.Errorf("covenant %q: %w", d.Name, err)
	}
	if math.IsNaN(d.Threshold) || math.IsInf(d.Threshold, 0) {
		return fmt.Errorf("covenant %q: threshold must be finite", d.Name)
	}
	return nil
}
