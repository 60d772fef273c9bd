package redis

import "errors"

// ErrKeyNotFound is returned by Get for a missing key, so callers never
// compare against the driver's sentinel directly.
var ErrKeyNotFound = errors.New("redis: key not found")
