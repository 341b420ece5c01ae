package box

import "errors"

var (
	// ErrInvalidArgument is returned for out-of-range arguments, such as an
	// empty content_type or a non-positive RequestOptions.MaxRetries.
	ErrInvalidArgument = errors.New("box: invalid argument")
	// ErrRequestTimeout is returned by Ask once every retry attempt has
	// been exhausted without a matching Answer arriving.
	ErrRequestTimeout = errors.New("box: request timed out")
	// ErrCancelled is returned by Ask when its context is cancelled before
	// a matching Answer arrives.
	ErrCancelled = errors.New("box: request cancelled")
	// ErrShutdown is returned to every outstanding Ask when the owning box
	// is closed, and from Tell/Ask called after Close.
	ErrShutdown = errors.New("box: shutting down")
	// ErrBusy is returned by Tell/Ask when the outbound queue is full.
	ErrBusy = errors.New("box: outbound queue full")
	// ErrTransport wraps a failure to dial the box's peer address in New.
	// Send failures in the worker are logged and not returned to Tell/Ask.
	ErrTransport = errors.New("box: transport error")
)
