// Package diskspace probes free space on the host filesystem. Preflight
// uses it; platforms without statfs degrade to a probe failure rather
// than a build failure.
package diskspace

import "errors"

// ErrUnsupported is returned on platforms without a statfs probe.
var ErrUnsupported = errors.New("disk space probe not supported on this platform")
