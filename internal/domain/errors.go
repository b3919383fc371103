package domain

import "errors"

// Sentinel errors for domain operations
var (
	// ErrNoStreamURL indicates the snapshot has no usable stream URL for the requested quality
	ErrNoStreamURL = errors.New("no stream URL for requested quality")

	// ErrRecordNotFound indicates the requested record does not exist in the collection
	ErrRecordNotFound = errors.New("record not found")

	// ErrNoFrame indicates no candidate timestamp yielded a decodable frame
	ErrNoFrame = errors.New("no frame could be extracted")
)
