package domain

import "errors"

var (
	// ErrInvalidRequest signals a malformed request body or file URL.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrDownloadFailed signals a network error or a non-2xx response from the file host.
	ErrDownloadFailed = errors.New("download failed")
	// ErrTooLarge signals that the remote file exceeds the configured size limit.
	ErrTooLarge = errors.New("file too large")
	// ErrParseFailed signals bytes that do not decode as an STL mesh.
	ErrParseFailed = errors.New("mesh parse failed")
	// ErrNotWatertight signals a mesh that parses but does not enclose a volume.
	ErrNotWatertight = errors.New("STL is not watertight, volume cannot be computed")
	// ErrInternal signals any other failure, e.g. scratch storage errors.
	ErrInternal = errors.New("internal error")

	// ErrInvalidAPIKey signals that the provided API key is not known.
	ErrInvalidAPIKey = errors.New("invalid api key")
	// ErrTokenStoreNotReady signals that the token store has not been loaded yet.
	// This can happen during startup when the DB isn't ready.
	ErrTokenStoreNotReady = errors.New("token store not ready")
)

// Kind classifies a failed quote.
type Kind int

const (
	KindInternal Kind = iota
	KindInvalidRequest
	KindDownload
	KindTooLarge
	KindParse
	KindGeometry
)

func (k Kind) String() string {
	switch k {
	case KindInvalidRequest:
		return "invalid_request"
	case KindDownload:
		return "download"
	case KindTooLarge:
		return "too_large"
	case KindParse:
		return "parse"
	case KindGeometry:
		return "geometry"
	default:
		return "internal"
	}
}

// KindOf returns the failure kind carried by err. Errors that wrap none of the
// quote sentinels are internal.
func KindOf(err error) Kind {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return KindInvalidRequest
	case errors.Is(err, ErrTooLarge):
		return KindTooLarge
	case errors.Is(err, ErrDownloadFailed):
		return KindDownload
	case errors.Is(err, ErrParseFailed):
		return KindParse
	case errors.Is(err, ErrNotWatertight):
		return KindGeometry
	default:
		return KindInternal
	}
}
