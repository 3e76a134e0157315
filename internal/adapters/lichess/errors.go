package lichess

import "errors"

var (
	// ErrRequestFailed indicates the request never got a usable response.
	ErrRequestFailed = errors.New("lichess request failed")

	// ErrRemoteStatus indicates the remote answered with a non-2xx status.
	ErrRemoteStatus = errors.New("unexpected lichess response status")
)
