// Command convert submits one conversion to the remote service, follows it to
// completion and optionally saves the produced files.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/time/rate"

	"converter/internal/aggregate"
	"converter/internal/domain"
	"converter/internal/infra"
	"converter/internal/poller"
	"converter/internal/providers/convert"
	"converter/internal/session"
	"converter/internal/storage"
	"converter/internal/validator"
	"converter/pkg/zip"
)

const (
	exitOK      = 0
	exitFailed  = 1
	exitUsage   = 2
	exitPartial = 3
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

type options struct {
	mode     string
	url      string
	file     string
	format   string
	quality  string
	out      string
	zipName  string
	baseURL  string
	interval time.Duration
	verbose  bool
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	cfg, err := infra.LoadConfig()
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}

	var opts options
	fs := flag.NewFlagSet("convert", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.mode, "mode", "single", "submission mode (single, playlist, batch)")
	fs.StringVar(&opts.url, "url", "", "video or playlist url; batch mode also accepts urls as arguments")
	fs.StringVar(&opts.file, "file", "", "batch mode: file with one url per line (- for stdin)")
	fs.StringVar(&opts.format, "format", "mp3", "output format (mp3, mp4)")
	fs.StringVar(&opts.quality, "quality", "320", "bitrate in kbps (192, 256, 320)")
	fs.StringVar(&opts.out, "out", cfg.DownloadDir, "directory to save converted files into (default from DOWNLOAD_DIR)")
	fs.StringVar(&opts.zipName, "zip", "", "also bundle saved files into this archive inside -out")
	fs.StringVar(&opts.baseURL, "server", cfg.ConverterBaseURL, "conversion service base url")
	fs.DurationVar(&opts.interval, "interval", cfg.PollInterval, "status poll interval")
	fs.BoolVar(&opts.verbose, "v", false, "verbose logging")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if opts.zipName != "" && opts.out == "" {
		fmt.Fprintln(stderr, "-zip requires -out")
		return exitUsage
	}

	req, err := buildRequest(opts, fs.Args(), stdin)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}

	logger := infra.NewConsoleLogger(stderr, opts.verbose)
	var limiter *rate.Limiter
	if cfg.ConverterRequestsPerS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.ConverterRequestsPerS), 1)
	}
	client := convert.NewClient(convert.Options{
		BaseURL:        opts.baseURL,
		RequestTimeout: cfg.ConverterTimeout,
		Logger:         &logger,
		Limiter:        limiter,
	})

	progressTitle := cases.Title(language.English)
	mgr := session.NewManager(session.Options{
		Dispatcher: client,
		Poller:     poller.New(client, opts.interval),
		Logger:     &logger,
		Context:    ctx,
		OnChange: func(s domain.Session) {
			fmt.Fprintln(stderr, progressLine(progressTitle, s))
		},
	})
	defer mgr.Close()

	if _, err := mgr.Submit(ctx, req, session.SubmitOptions{}); err != nil && !errors.Is(err, domain.ErrValidation) && !errors.Is(err, domain.ErrDispatch) {
		fmt.Fprintln(stderr, err)
		return exitFailed
	}
	final, err := mgr.Wait(ctx)
	if err != nil {
		final = mgr.Cancel()
	}

	printResults(stdout, cases.Title(language.English), final)
	if final.Phase == domain.PhaseFailed && len(final.Results()) == 0 {
		return exitFailed
	}

	if opts.out != "" {
		if err := saveArtifacts(ctx, client, final, opts, stderr); err != nil {
			fmt.Fprintln(stderr, err)
			return exitFailed
		}
	}

	switch final.Phase {
	case domain.PhaseSucceeded:
		return exitOK
	case domain.PhasePartiallyFailed:
		return exitPartial
	default:
		return exitFailed
	}
}

func buildRequest(opts options, rest []string, stdin io.Reader) (domain.ConversionRequest, error) {
	mode, err := domain.ParseMode(opts.mode)
	if err != nil {
		return domain.ConversionRequest{}, err
	}
	req := domain.ConversionRequest{
		Mode:    mode,
		Format:  domain.Format(strings.ToLower(opts.format)),
		Quality: domain.Quality(opts.quality),
	}
	if mode != domain.ModeBatch {
		if opts.url == "" && len(rest) == 1 {
			opts.url = rest[0]
		}
		if opts.url == "" {
			return req, errors.New("-url is required")
		}
		req.URLs = []string{opts.url}
		return req, nil
	}

	if opts.url != "" {
		req.URLs = append(req.URLs, opts.url)
	}
	req.URLs = append(req.URLs, rest...)
	if opts.file != "" {
		var r io.Reader = stdin
		if opts.file != "-" {
			f, err := os.Open(opts.file)
			if err != nil {
				return req, fmt.Errorf("open url list: %w", err)
			}
			defer f.Close()
			r = f
		}
		block, err := io.ReadAll(r)
		if err != nil {
			return req, fmt.Errorf("read url list: %w", err)
		}
		req.URLs = append(req.URLs, validator.SplitLines(string(block))...)
	}
	if len(req.URLs) == 0 {
		return req, errors.New("batch mode needs urls via -url, -file or arguments")
	}
	return req, nil
}

func progressLine(title cases.Caser, s domain.Session) string {
	line := fmt.Sprintf("%s %s", title.String(string(s.Request.Mode)), title.String(strings.ReplaceAll(string(s.Phase), "-", " ")))
	if s.Job != nil {
		c := aggregate.Summary(s.Job.Items)
		line += fmt.Sprintf(" %d%% (%d ok, %d failed, %d pending)", s.Job.Progress, c.Succeeded, c.Failed, c.Pending)
	}
	if s.Error != "" {
		line += ": " + s.Error
	}
	return line
}

func printResults(w io.Writer, title cases.Caser, s domain.Session) {
	for _, line := range s.Rejected {
		fmt.Fprintf(w, "skipped\t%s\n", line)
	}
	for _, item := range s.Results() {
		name := item.Title
		if name == "" {
			name = item.SourceURL
		}
		switch item.Status {
		case domain.ItemStatusSuccess:
			fmt.Fprintf(w, "ok\t%s\t%s\n", name, item.DownloadRef)
		default:
			fmt.Fprintf(w, "%s\t%s\t%s\n", strings.ToLower(string(item.Status)), name, item.Error)
		}
	}
	fmt.Fprintln(w, title.String(strings.ReplaceAll(string(s.Phase), "-", " ")))
}

func saveArtifacts(ctx context.Context, client *convert.Client, s domain.Session, opts options, stderr io.Writer) error {
	store, err := storage.NewFileStore(opts.out)
	if err != nil {
		return err
	}
	var entries []zip.Entry
	for _, item := range s.Results() {
		if item.Status != domain.ItemStatusSuccess || item.DownloadRef == "" {
			continue
		}
		art, err := client.FetchArtifact(ctx, item.DownloadRef)
		if err != nil {
			fmt.Fprintf(stderr, "download %s: %v\n", item.DownloadRef, err)
			continue
		}
		name := art.Filename
		if item.Title != "" && filepath.Ext(name) != "" {
			name = item.Title + filepath.Ext(name)
		}
		path, err := store.Save(ctx, name, art.Data)
		if err != nil {
			return err
		}
		fmt.Fprintf(stderr, "saved %s\n", path)
		entries = append(entries, zip.Entry{Filename: filepath.Base(path), Data: art.Data, Modified: time.Now()})
	}
	if opts.zipName == "" || len(entries) == 0 {
		return nil
	}
	archive, err := zip.Archive(entries)
	if err != nil {
		return err
	}
	name := opts.zipName
	if filepath.Ext(name) == "" {
		name += ".zip"
	}
	path, err := store.Save(ctx, name, archive)
	if err != nil {
		return err
	}
	fmt.Fprintf(stderr, "archived %d files into %s\n", len(entries), path)
	return nil
}
