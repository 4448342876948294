package validate

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// Options configures a Validate call: plain struct, checked via
// validator/v10 at the start of every Validate call, never touching the YASL
// data/schema validation pipeline itself.
type Options struct {
	// ReachabilityTimeout bounds how long a url_reachable check may block.
	ReachabilityTimeout time.Duration `validate:"gt=0"`

	// DowngradeURLReachability turns a failed url_reachable check into a
	// SeverityWarning diagnostic instead of a fatal one. Default is a hard
	// error; this opts out.
	DowngradeURLReachability bool
}

// DefaultOptions returns the Options Validate uses unless the caller
// overrides them.
func DefaultOptions() Options {
	return Options{ReachabilityTimeout: 5 * time.Second}
}

var validatorInstance = validator.New()

// Validate checks o against its struct tags.
func (o Options) Validate() error {
	return validatorInstance.Struct(o)
}
