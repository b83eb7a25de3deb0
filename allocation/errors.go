package allocation

import "github.com/lorsio/lors/errkinds"

func errInvalidAllocation(format string, args ...any) error {
	return errkinds.MalformedAllocation.New(format, args...)
}
