package image

import (
	platformerrors "poap-og-server/internal/platform/errors"
)

const (
	opFetch  = "image.fetch"
	opDecode = "image.decode"
)

// IsFetchError reports whether err came from downloading a badge.
func IsFetchError(err error) bool {
	return platformerrors.IsKind(err, platformerrors.KindUpstream)
}

// IsDecodeError reports whether err came from reading badge metadata or pixels.
func IsDecodeError(err error) bool {
	return platformerrors.IsKind(err, platformerrors.KindDecode)
}

func fetchError(message string, cause error) error {
	if cause == nil {
		return platformerrors.New(platformerrors.KindUpstream, opFetch, message)
	}
	return platformerrors.Wrap(platformerrors.KindUpstream, opFetch, message, cause)
}

func decodeError(message string, cause error) error {
	if cause == nil {
		return platformerrors.New(platformerrors.KindDecode, opDecode, message)
	}
	return platformerrors.Wrap(platformerrors.KindDecode, opDecode, message, cause)
}
