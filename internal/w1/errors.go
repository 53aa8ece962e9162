package w1

import "errors"

var (
	ErrNegativeDriftCoefficient = errors.New("drift coefficient must be >= 0")
	ErrNoAddress                = errors.New("no device address configured for sensor")
)
