package routing

import "errors"

// ErrNoRoute indicates the provider could not produce an estimate for the
// address pair. Callers degrade to "no distance available".
var ErrNoRoute = errors.New("routing: no route available")
