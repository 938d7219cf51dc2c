package repository

import "errors"

var (
	// ErrNotFound: la entidad no existe. Los handlers lo traducen al error
	// OAuth que corresponda; nunca se expone tal cual.
	ErrNotFound = errors.New("repository: not found")

	// ErrConflict: violación de unicidad (email/username/client_id tomado).
	ErrConflict = errors.New("repository: already exists")
)
