package codec

import "errors"

var (
	ErrUnrecognizedFormat = errors.New("not a recognized import file")
	ErrPasswordRequired   = errors.New("import password required")
	ErrMissingSalt        = errors.New("container is missing a salt")
	ErrSizeLimit          = errors.New("import exceeds size limit")
	ErrInvalidMode        = errors.New("import mode must be add or replace")
)
