package shared

import "errors"

// ErrOwnerRequired occurs when a request carries no owner.
var ErrOwnerRequired = errors.New("owner id required")
