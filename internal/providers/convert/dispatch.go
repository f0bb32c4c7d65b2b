// Package convert talks to the remote media conversion service: it submits
// conversion requests, fetches job status and resolves download references.
package convert

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"converter/internal/domain"
)

// Submit sends exactly one request for req and classifies the answer. It never
// returns a raw transport error: every failure becomes OutcomeDispatchFailed.
func (c *Client) Submit(ctx context.Context, req domain.ConversionRequest) domain.Outcome {
	if len(req.URLs) == 0 {
		return dispatchFailed(errors.New("no urls to submit"))
	}

	var (
		resp   *submitResponse
		status int
		err    error
	)
	switch req.Mode {
	case domain.ModeSingle:
		resp, status, err = c.submitSingle(ctx, "/api/convert", req.URLs[0], req.Format, req.Quality)
	case domain.ModePlaylist:
		resp, status, err = c.submitSingle(ctx, "/api/convert/playlist", req.URLs[0], req.Format, req.Quality)
	case domain.ModeBatch:
		resp, status, err = c.submitBatch(ctx, req.URLs, req.Format, req.Quality)
	default:
		return dispatchFailed(fmt.Errorf("unsupported mode %q", req.Mode))
	}
	if err != nil {
		c.logger.Warn().Err(err).Str("mode", string(req.Mode)).Msg("convert: submit failed")
		return dispatchFailed(err)
	}

	if status >= http.StatusMultipleChoices {
		return dispatchFailed(errors.New(failureMessage(resp, req.Mode, status)))
	}
	if req.Mode == domain.ModeSingle {
		return singleOutcome(resp, req.URLs[0])
	}
	return jobOutcome(resp, req)
}

func singleOutcome(resp *submitResponse, source string) domain.Outcome {
	item := domain.ResultItem{
		SourceURL:   source,
		Title:       strings.TrimSpace(resp.Title),
		DownloadRef: downloadRef(resp.DownloadURL, resp.FileID),
	}
	failed := strings.TrimSpace(resp.Error) != "" || domain.ParseItemStatus(resp.Status) == domain.ItemStatusFailed
	switch {
	case failed:
		item.Status = domain.ItemStatusFailed
		item.Error = firstNonEmpty(resp.Error, resp.Message, "Conversion failed")
		item.DownloadRef = ""
	case item.DownloadRef != "":
		item.Status = domain.ItemStatusSuccess
	default:
		return dispatchFailed(errors.New("response carries no download url"))
	}
	return domain.Outcome{Kind: domain.OutcomeImmediate, Item: item}
}

func jobOutcome(resp *submitResponse, req domain.ConversionRequest) domain.Outcome {
	if id := strings.TrimSpace(resp.JobID); id != "" {
		return domain.Outcome{Kind: domain.OutcomeJobStarted, JobID: id}
	}
	if len(resp.Results) > 0 {
		return domain.Outcome{Kind: domain.OutcomeCompleted, Items: toItems(resp.Results)}
	}
	if msg := firstNonEmpty(resp.Error, resp.Message); msg != "" {
		return dispatchFailed(errors.New(msg))
	}
	return dispatchFailed(errors.New("response carries no job id"))
}

func failureMessage(resp *submitResponse, mode domain.Mode, status int) string {
	if resp != nil {
		if msg := firstNonEmpty(resp.Error, resp.Message); msg != "" {
			return msg
		}
	}
	switch mode {
	case domain.ModePlaylist:
		return fmt.Sprintf("Playlist conversion failed (status %d)", status)
	case domain.ModeBatch:
		return fmt.Sprintf("Batch conversion failed (status %d)", status)
	default:
		return fmt.Sprintf("Conversion failed (status %d)", status)
	}
}

func dispatchFailed(err error) domain.Outcome {
	return domain.Outcome{Kind: domain.OutcomeDispatchFailed, Err: fmt.Errorf("%w: %w", domain.ErrDispatch, err)}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
