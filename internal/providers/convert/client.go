package convert

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"converter/internal/domain"
	"converter/internal/infra"
)

const (
	defaultBaseURL = "http://localhost:8000"
	downloadPrefix = "/api/download/"
)

// ErrEmptyJobID indicates a job status call without an identifier.
var ErrEmptyJobID = errors.New("convert: job id is required")

// Options configures the conversion service client.
type Options struct {
	BaseURL        string
	HTTPClient     *http.Client
	RequestTimeout time.Duration
	Logger         *infra.Logger
	// Limiter paces outbound calls. Calls wait for a token, they are never dropped.
	Limiter *rate.Limiter
}

// Client performs HTTP calls to the remote conversion API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *infra.Logger
	limiter    *rate.Limiter
}

// Artifact is a resolved download reference.
type Artifact struct {
	Filename    string
	ContentType string
	Data        []byte
}

type singleRequest struct {
	URL     string `json:"url"`
	Format  string `json:"format"`
	Quality string `json:"quality"`
}

type batchRequest struct {
	URLs    []string `json:"urls"`
	Format  string   `json:"format"`
	Quality string   `json:"quality"`
}

type resultEntry struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Status      string `json:"status"`
	FileID      string `json:"file_id"`
	DownloadURL string `json:"download_url"`
	Error       string `json:"error"`
}

type submitResponse struct {
	Status      string        `json:"status"`
	Title       string        `json:"title"`
	DownloadURL string        `json:"download_url"`
	FileID      string        `json:"file_id"`
	JobID       string        `json:"job_id"`
	Error       string        `json:"error"`
	Message     string        `json:"message"`
	Results     []resultEntry `json:"results"`
}

type statusResponse struct {
	Status   string        `json:"status"`
	Progress progress      `json:"progress"`
	Results  []resultEntry `json:"results"`
	Error    string        `json:"error"`
}

// progress accepts numbers and numeric strings; some services report "42".
type progress int

func (p *progress) UnmarshalJSON(b []byte) error {
	raw := strings.Trim(strings.TrimSpace(string(b)), `"`)
	raw = strings.TrimSuffix(raw, "%")
	if raw == "" || raw == "null" {
		*p = 0
		return nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("convert: invalid progress %s", string(b))
	}
	switch {
	case f < 0:
		f = 0
	case f > 100:
		f = 100
	}
	*p = progress(int(f))
	return nil
}

// NewClient constructs a client with defaults for anything left unset.
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	logger := opts.Logger
	if logger == nil {
		logger = infra.Discard()
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
		limiter:    opts.Limiter,
	}
}

// BaseURL returns the configured service root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) submitSingle(ctx context.Context, endpoint, rawURL string, format domain.Format, quality domain.Quality) (*submitResponse, int, error) {
	return c.postJSON(ctx, endpoint, singleRequest{URL: rawURL, Format: string(format), Quality: string(quality)})
}

func (c *Client) submitBatch(ctx context.Context, urls []string, format domain.Format, quality domain.Quality) (*submitResponse, int, error) {
	return c.postJSON(ctx, "/api/convert/batch", batchRequest{URLs: urls, Format: string(format), Quality: string(quality)})
}

// postJSON sends payload and decodes the body. A non-2xx status with a
// decodable body is returned with a nil error so callers can read the
// service's message.
func (c *Client) postJSON(ctx context.Context, endpoint string, payload any) (*submitResponse, int, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, fmt.Errorf("convert: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("convert: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	res, err := c.do(req)
	if err != nil {
		return nil, 0, err
	}
	raw, status := res.body, res.status
	var decoded submitResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		if status >= http.StatusMultipleChoices {
			return nil, status, fmt.Errorf("convert: status %d: %s", status, strings.TrimSpace(string(raw)))
		}
		return nil, status, fmt.Errorf("convert: decode response: %w", err)
	}
	return &decoded, status, nil
}

// JobStatus fetches the current state of an asynchronous job.
func (c *Client) JobStatus(ctx context.Context, jobID string) (domain.JobUpdate, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return domain.JobUpdate{}, ErrEmptyJobID
	}
	endpoint := c.baseURL + "/api/status/" + url.PathEscape(jobID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.JobUpdate{}, fmt.Errorf("convert: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.do(req)
	if err != nil {
		return domain.JobUpdate{}, err
	}
	raw, status := res.body, res.status
	if status >= http.StatusMultipleChoices {
		var detail statusResponse
		if err := json.Unmarshal(raw, &detail); err == nil && detail.Error != "" {
			return domain.JobUpdate{}, fmt.Errorf("convert: %s (status %d)", detail.Error, status)
		}
		return domain.JobUpdate{}, fmt.Errorf("convert: status %d: %s", status, strings.TrimSpace(string(raw)))
	}
	var decoded statusResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return domain.JobUpdate{}, fmt.Errorf("convert: decode status: %w", err)
	}
	if strings.TrimSpace(decoded.Status) == "" {
		return domain.JobUpdate{}, errors.New("convert: status response without status")
	}
	update := domain.JobUpdate{
		Status:   domain.ParseJobStatus(decoded.Status),
		Progress: int(decoded.Progress),
		Items:    toItems(decoded.Results),
	}
	c.logger.Debug().
		Str("job_id", jobID).
		Str("status", string(update.Status)).
		Int("progress", update.Progress).
		Int("items", len(update.Items)).
		Msg("convert: job status")
	return update, nil
}

// FetchArtifact resolves a download reference into bytes. Relative references
// and bare file ids are resolved against the service root.
func (c *Client) FetchArtifact(ctx context.Context, ref string) (*Artifact, error) {
	target, err := c.ResolveURL(ref)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("convert: build download request: %w", err)
	}
	res, err := c.do(req)
	if err != nil {
		return nil, err
	}
	if res.status == http.StatusNotFound {
		return nil, fmt.Errorf("convert: artifact %s: %w", ref, domain.ErrNotFound)
	}
	if res.status >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("convert: download status %d", res.status)
	}
	contentType := res.header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return &Artifact{
		Filename:    artifactName(res.header, target),
		ContentType: contentType,
		Data:        res.body,
	}, nil
}

// ResolveURL turns a download reference into an absolute URL.
func (c *Client) ResolveURL(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", errors.New("convert: download reference is required")
	}
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		if _, err := url.Parse(ref); err != nil {
			return "", fmt.Errorf("convert: invalid download url: %w", err)
		}
		return ref, nil
	}
	if !strings.HasPrefix(ref, "/") {
		ref = downloadPrefix + url.PathEscape(ref)
	}
	return c.baseURL + ref, nil
}

type httpResult struct {
	body   []byte
	status int
	header http.Header
}

func (c *Client) do(req *http.Request) (*httpResult, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(req.Context()); err != nil {
			return nil, fmt.Errorf("convert: rate limit: %w", err)
		}
	}
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("convert: http request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("convert: read response: %w", err)
	}
	c.logger.Debug().
		Str("method", req.Method).
		Str("url", req.URL.String()).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("convert: http call")
	return &httpResult{body: raw, status: resp.StatusCode, header: resp.Header}, nil
}

func toItems(entries []resultEntry) []domain.ResultItem {
	if len(entries) == 0 {
		return nil
	}
	items := make([]domain.ResultItem, len(entries))
	for i, e := range entries {
		item := domain.ResultItem{
			SourceURL:   strings.TrimSpace(e.URL),
			Title:       strings.TrimSpace(e.Title),
			Status:      domain.ParseItemStatus(e.Status),
			DownloadRef: downloadRef(e.DownloadURL, e.FileID),
			Error:       strings.TrimSpace(e.Error),
		}
		if strings.TrimSpace(e.Status) == "" {
			// Older responses omit status and signal the outcome by field presence.
			switch {
			case item.DownloadRef != "":
				item.Status = domain.ItemStatusSuccess
			case item.Error != "":
				item.Status = domain.ItemStatusFailed
			}
		}
		if item.Status == domain.ItemStatusFailed && item.Error == "" {
			item.Error = "Failed"
		}
		items[i] = item
	}
	return items
}

func downloadRef(downloadURL, fileID string) string {
	if ref := strings.TrimSpace(downloadURL); ref != "" {
		return ref
	}
	if id := strings.TrimSpace(fileID); id != "" {
		return downloadPrefix + url.PathEscape(id)
	}
	return ""
}

func artifactName(header http.Header, target string) string {
	if cd := header.Get("Content-Disposition"); cd != "" {
		if _, params, err := mime.ParseMediaType(cd); err == nil && params["filename"] != "" {
			return path.Base(params["filename"])
		}
	}
	if u, err := url.Parse(target); err == nil {
		if base := path.Base(u.Path); base != "." && base != "/" {
			return base
		}
	}
	return "download"
}
