package domain

import "errors"

var (
	ErrUnknownExplainer    = errors.New("unknown explainer provider")
	ErrUnsupportedFileType = errors.New("unsupported file type")
)
