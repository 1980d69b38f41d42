package room

import "github.com/rotisserie/eris"

var (
	ErrNotFound     = eris.New("not found")
	ErrInvalidInput = eris.New("invalid input")
	ErrPrecondition = eris.New("precondition not met")
	ErrForbidden    = eris.New("forbidden")
)
