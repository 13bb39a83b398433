//go:build !linux && !darwin && !freebsd && !dragonfly

package preflight

import "errors"

func diskFree(string) (int64, error) {
	return 0, errors.ErrUnsupported
}
