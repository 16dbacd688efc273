package repository

import "errors"

// ErrNoRowsUpdated signals that a guarded update matched no rows, usually
// because the row was not in the expected state.
var ErrNoRowsUpdated = errors.New("no rows updated")
