package models

import "errors"

// Sentinel errors shared across packages.
var (
	// Loop definition errors
	ErrConfigNotFound  = errors.New("loop definition not found")
	ErrUnknownStrategy = errors.New("unknown completion strategy")

	// Prompt errors
	ErrPromptNotFound = errors.New("prompt template not found")

	// Session errors
	ErrInvalidSessionName = errors.New("session name is required")
	ErrInvalidLoopType    = errors.New("loop type is required")
	ErrStateCorrupt       = errors.New("session state file is corrupt")
	ErrSessionLocked      = errors.New("session is locked by another process")
	ErrSessionComplete    = errors.New("session already has a terminal status")

	// Dependency errors
	ErrDependencyMissing = errors.New("required external tool is missing")
)
