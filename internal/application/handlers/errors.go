package handlers

import "errors"

// ErrInvalidInput marks errors caused by user input rather than by the store.
var ErrInvalidInput = errors.New("invalid input")
