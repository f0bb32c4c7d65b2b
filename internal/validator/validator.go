// Package validator classifies user input as acceptable conversion targets.
package validator

import (
	"fmt"
	"strings"

	"converter/internal/domain"
)

var hostMarkers = []string{"youtube.com", "youtu.be"}

// IsAcceptable reports whether url mentions a supported host. Matching is a
// case-sensitive substring check.
func IsAcceptable(url string) bool {
	for _, marker := range hostMarkers {
		if strings.Contains(url, marker) {
			return true
		}
	}
	return false
}

// SplitLines breaks a newline-delimited block into trimmed, non-empty lines.
func SplitLines(block string) []string {
	var lines []string
	for _, line := range strings.Split(block, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// FilterAcceptable partitions urls while keeping their relative order.
func FilterAcceptable(urls []string) (accepted, rejected []string) {
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		if IsAcceptable(u) {
			accepted = append(accepted, u)
		} else {
			rejected = append(rejected, u)
		}
	}
	return accepted, rejected
}

// Validate normalizes req for dispatch. Batch requests keep only acceptable
// lines and fail when none remain; the dropped lines are returned.
func Validate(req domain.ConversionRequest) (domain.ConversionRequest, []string, error) {
	out := req.Clone()
	if out.Format == "" {
		out.Format = domain.FormatMP3
	}
	if out.Quality == "" {
		out.Quality = domain.Quality320
	}
	format, err := domain.ParseFormat(string(out.Format))
	if err != nil {
		return out, nil, err
	}
	quality, err := domain.ParseQuality(string(out.Quality))
	if err != nil {
		return out, nil, err
	}
	out.Format, out.Quality = format, quality

	switch out.Mode {
	case domain.ModeSingle, domain.ModePlaylist:
		if len(out.URLs) != 1 {
			return out, nil, fmt.Errorf("%w: %s mode takes exactly one url", domain.ErrValidation, out.Mode)
		}
		out.URLs[0] = strings.TrimSpace(out.URLs[0])
		if !IsAcceptable(out.URLs[0]) {
			msg := "Invalid YouTube URL"
			if out.Mode == domain.ModePlaylist {
				msg = "Invalid playlist URL"
			}
			return out, nil, fmt.Errorf("%w: %s", domain.ErrValidation, msg)
		}
		return out, nil, nil
	case domain.ModeBatch:
		accepted, rejected := FilterAcceptable(out.URLs)
		if len(accepted) == 0 {
			return out, rejected, fmt.Errorf("%w: Enter valid YouTube URLs", domain.ErrValidation)
		}
		out.URLs = accepted
		return out, rejected, nil
	default:
		return out, nil, fmt.Errorf("%w: unsupported mode %q", domain.ErrValidation, out.Mode)
	}
}
