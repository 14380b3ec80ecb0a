// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SimpleAuth Contributors

package auth

import "errors"

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert violates a uniqueness constraint
// (session token, reset selector, user email). For randomly generated values
// this is a retryable condition: regenerate and insert again.
var ErrDuplicate = errors.New("duplicate value")
