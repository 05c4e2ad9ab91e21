package storage

import "errors"

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicateOpenOrder is returned when an open order already exists for the listing and buyer.
var ErrDuplicateOpenOrder = errors.New("an open order already exists for this listing and buyer")
