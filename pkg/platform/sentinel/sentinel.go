package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and infrastructure layers return
// these (optionally wrapped) so services can translate them into domain errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: entity does not exist in store
// - ErrForeignRef: a referenced entity does not exist (broken foreign key)
// - ErrConflict: entity already exists or is in a conflicting state
// - ErrExpired: token/session has expired
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound   = errors.New("not found")
	ErrForeignRef = errors.New("referenced entity not found")
	ErrConflict   = errors.New("conflict")
	ErrExpired    = errors.New("expired")
)
