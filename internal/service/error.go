package service

import "errors"

// Error definitions for the service package. Their messages are returned to
// API clients verbatim.
var (
	ErrUnsupportedFileType = errors.New("File type not supported. Please upload MP3, WAV, or OGG.")
	ErrFeatureExtraction   = errors.New("Could not extract features from the audio file")
	ErrClassification      = errors.New("Error during classification")
)
