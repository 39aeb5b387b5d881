package service

import "errors"

// Auth errors
var (
	ErrAuthenticationFailed = errors.New("invalid email or password")
	ErrForbidden            = errors.New("access denied")
)

// Task graph errors
var (
	ErrCyclicDependency       = errors.New("dependency would create a cycle")
	ErrCyclicHierarchy        = errors.New("parent is a descendant of the task")
	ErrCrossProjectDependency = errors.New("dependency crosses projects")
	ErrCrossProjectParent     = errors.New("parent task belongs to another project")
	ErrSelfParent             = errors.New("task cannot be its own parent")
	ErrInvalidStatus          = errors.New("invalid task status")
	ErrInvalidPriority        = errors.New("invalid task priority")
	ErrInvalidInput           = errors.New("invalid input")
)
