package engine

import "errors"

var (
	// ErrSchemaNotFound is returned when the configured schema does not exist
	ErrSchemaNotFound = errors.New("schema not found")
	// ErrUnknownTable is returned when a registered table does not exist
	ErrUnknownTable = errors.New("unknown table")
	// ErrMetadataQuery wraps failures while discovering table structure
	ErrMetadataQuery = errors.New("metadata query failed")
	// ErrRowCollection wraps failures while collecting records
	ErrRowCollection = errors.New("row collection failed")
	// ErrAlreadyBuilt is returned by every Build after the first
	ErrAlreadyBuilt = errors.New("engine already built")
)
