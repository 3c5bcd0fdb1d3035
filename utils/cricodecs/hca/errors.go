package hca

import "errors"

var (
	ErrMalformedMagic               = errors.New("hca: malformed magic")
	ErrChecksumMismatch             = errors.New("hca: checksum mismatch")
	ErrUnknownHeaderTag             = errors.New("hca: unknown header tag")
	ErrUnsupportedCipherType        = errors.New("hca: unsupported cipher type")
	ErrInvalidBlockSize             = errors.New("hca: invalid block size")
	ErrInvalidCompressionParameters = errors.New("hca: invalid compression parameters")
	ErrUnsupportedATHType           = errors.New("hca: unsupported ath type")
	ErrUnsupportedChannelLayout     = errors.New("hca: unsupported channel layout")
	ErrUnsupportedSampleMode        = errors.New("hca: unsupported sample mode")
	ErrTruncated                    = errors.New("hca: truncated data")
)
