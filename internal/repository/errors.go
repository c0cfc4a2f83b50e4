package repository

import "errors"

// ErrNotFound is returned when a requested record is not found in the repository.
// This abstracts away the underlying storage implementation from the service layer.
var ErrNotFound = errors.New("record not found")

// ErrVersionConflict is returned when a conditional write finds that the record
// changed since it was read.
var ErrVersionConflict = errors.New("version conflict")

// ErrAlreadyExists is returned when inserting a record whose key is taken.
var ErrAlreadyExists = errors.New("record already exists")
