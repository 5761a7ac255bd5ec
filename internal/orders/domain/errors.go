package domain

import "errors"

var (
	ErrInvalidStatus  = errors.New("invalid status")
	ErrTerminalStatus = errors.New("order status is final")
)
