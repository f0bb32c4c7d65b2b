package domain

import (
	"fmt"
	"strings"
)

// Mode selects how the conversion request is submitted.
type Mode string

const (
	ModeSingle   Mode = "single"
	ModePlaylist Mode = "playlist"
	ModeBatch    Mode = "batch"
)

// Async reports whether the service answers this mode with a job to poll.
func (m Mode) Async() bool {
	return m == ModePlaylist || m == ModeBatch
}

// Format is the requested output container.
type Format string

const (
	FormatMP3 Format = "mp3"
	FormatMP4 Format = "mp4"
)

// Quality is the requested bitrate in kbps.
type Quality string

const (
	Quality192 Quality = "192"
	Quality256 Quality = "256"
	Quality320 Quality = "320"
)

func ParseMode(raw string) (Mode, error) {
	switch m := Mode(normalize(raw)); m {
	case ModeSingle, ModePlaylist, ModeBatch:
		return m, nil
	}
	return "", fmt.Errorf("%w: unsupported mode %q", ErrValidation, raw)
}

func ParseFormat(raw string) (Format, error) {
	switch f := Format(normalize(raw)); f {
	case FormatMP3, FormatMP4:
		return f, nil
	}
	return "", fmt.Errorf("%w: unsupported format %q", ErrValidation, raw)
}

func ParseQuality(raw string) (Quality, error) {
	switch q := Quality(strings.TrimSpace(raw)); q {
	case Quality192, Quality256, Quality320:
		return q, nil
	}
	return "", fmt.Errorf("%w: unsupported quality %q", ErrValidation, raw)
}

// ConversionRequest is what the user submits.
// Single and Playlist carry exactly one URL, Batch carries one or more.
type ConversionRequest struct {
	Mode    Mode     `json:"mode"`
	URLs    []string `json:"urls"`
	Format  Format   `json:"format"`
	Quality Quality  `json:"quality"`
}

// Clone returns a copy that does not share the URL slice.
func (r ConversionRequest) Clone() ConversionRequest {
	r.URLs = append([]string(nil), r.URLs...)
	return r
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
