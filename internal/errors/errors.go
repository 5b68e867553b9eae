// Package errors provides sentinel errors for distpush operations.
package errors

import "errors"

// Pipeline stage errors. Every stage failure is fatal to the run.
var (
	// ErrBuildFailed indicates the build command exited non-zero or could not be launched.
	ErrBuildFailed = errors.New("build failed")

	// ErrArchiveFailed indicates the archive writer or its output stream failed.
	ErrArchiveFailed = errors.New("archive failed")

	// ErrConnectFailed indicates the SSH handshake or authentication failed.
	ErrConnectFailed = errors.New("ssh connection failed")

	// ErrUploadFailed indicates the archive transfer to the remote host failed.
	ErrUploadFailed = errors.New("upload failed")

	// ErrLocalCleanupFailed indicates the local archive could not be deleted.
	ErrLocalCleanupFailed = errors.New("local cleanup failed")

	// ErrRemoteUnpackFailed indicates the remote unpack command failed or returned non-zero.
	ErrRemoteUnpackFailed = errors.New("remote unpack failed")
)

// Config errors
var (
	// ErrConfigNotFound indicates no configuration file was found.
	ErrConfigNotFound = errors.New("config file not found")

	// ErrEnvironmentNotFound indicates the named environment is not defined in the config file.
	ErrEnvironmentNotFound = errors.New("environment not found")

	// ErrInvalidConfig indicates a required field is missing or malformed.
	ErrInvalidConfig = errors.New("invalid config")
)

// Lock errors
var (
	// ErrProjectLocked indicates another deploy of the same project is in progress.
	ErrProjectLocked = errors.New("project is locked by another deploy")
)

// History errors
var (
	// ErrDeploymentNotFound indicates the requested deployment record does not exist.
	ErrDeploymentNotFound = errors.New("deployment not found")
)
