package assert

import (
	"context"
	"fmt"

	"github.com/khanhnv2901/seca-assert/internal/domain/check"
	sharedErrors "github.com/khanhnv2901/seca-assert/internal/shared/errors"
)

// UnknownIf converts errors matching any of targets into an UNKNOWN outcome.
// Matching goes through sharedErrors.Matches, so raw transport errors count
// as ErrConnection or ErrTimeout. Anything else still propagates.
func UnknownIf[P any](fn Func[P], targets ...error) Func[P] {
	return func(ctx context.Context, params P) (check.Outcome, error) {
		outcome, err := fn(ctx, params)
		if err == nil {
			return outcome, nil
		}
		for _, target := range targets {
			if sharedErrors.Matches(err, target) {
				return check.Unknown(fmt.Sprintf("An error occurred: %v", err)), nil
			}
		}
		return outcome, err
	}
}

// NetworkErrors are the failures every remote check treats as UNKNOWN.
var NetworkErrors = []error{
	sharedErrors.ErrConnection,
	sharedErrors.ErrTimeout,
	sharedErrors.ErrInvalidParameter,
}

// FileErrors are the failures every static check treats as UNKNOWN.
var FileErrors = []error{
	sharedErrors.ErrFileNotFound,
	sharedErrors.ErrInvalidParameter,
}
