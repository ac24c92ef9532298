package service

import "errors"

var (
	ErrNotFound                 = errors.New("not found")
	ErrPermissionDenied         = errors.New("permission denied")
	ErrInvalidInput             = errors.New("invalid input")
	ErrInvalidAmount            = errors.New("invalid amount")
	ErrInvalidTransition        = errors.New("invalid status transition")
	ErrDuplicateContractNumber  = errors.New("duplicate contract number")
	ErrDuplicateLineNumber      = errors.New("duplicate line number")
	ErrDuplicateVariationNumber = errors.New("duplicate variation number")
)
