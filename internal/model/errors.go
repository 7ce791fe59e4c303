package model

import "errors"

var (
	ErrNotFound           = errors.New("model not found")
	ErrAlreadyDownloading = errors.New("model download already in progress")
	ErrDownloadCancelled  = errors.New("model download cancelled")
	ErrLoadFailed         = errors.New("model load failed")
	ErrNoModelLoaded      = errors.New("no model loaded")
	ErrAudioTooShort      = errors.New("audio too short to transcribe")
	ErrEmptyTranscription = errors.New("transcription is empty")
	ErrIntegrity          = errors.New("model file failed integrity check")
)
