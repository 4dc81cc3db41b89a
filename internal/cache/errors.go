// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cache

import (
	"errors"
	"fmt"
)

// ErrUnknownNamespace is returned for a namespace name that is not one of Namespaces.
var ErrUnknownNamespace = errors.New("unknown cache namespace")

// CorruptError reports persisted cache data that could not be decoded.
// Store never returns it to callers; it is logged and the table is reset.
type CorruptError struct {
	Table string
	Err   error
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("corrupt cache table %s: %v", e.Table, e.Err)
}

func (e *CorruptError) Unwrap() error { return e.Err }
