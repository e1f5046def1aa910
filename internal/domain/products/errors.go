package products

import "errors"

var (
	ErrInvalidInput = errors.New("invalid products data")
	ErrNotFound     = errors.New("product not found")
)
