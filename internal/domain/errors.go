package domain

import "errors"

var (
	ErrValidation     = errors.New("validation failed")
	ErrNotFound       = errors.New("not found")
	ErrForbidden      = errors.New("forbidden")
	ErrUploadTooLarge = errors.New("upload exceeds size limit")
	ErrUpload         = errors.New("file upload failed")
)
