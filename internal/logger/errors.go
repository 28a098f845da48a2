package logger

import (
	"errors"
)

var (
	// ErrServiceNameIsEmpty error if the service name is empty.
	ErrServiceNameIsEmpty = errors.New("log config service name can not be empty")

	// ErrAppNameIsEmpty error if the app name is empty.
	ErrAppNameIsEmpty = errors.New("log config app name can not be empty")
)
