package ioctlcodec

import "errors"

var (
	ErrShortBuffer = errors.New("ioctlcodec: buffer too short")
	ErrBadMagic    = errors.New("ioctlcodec: bad magic byte")
)
