package music

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"go.uber.org/zap"

	"github.com/mohammad-safakhou/hermes/config"
)

const lockFile = ".download.lock"

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string) ([]byte, error)
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s", err, msg)
	}
	return stdout.Bytes(), nil
}

// Metadata is the subset of yt-dlp's info JSON the downloader reads.
type Metadata struct {
	ID             string  `json:"id"`
	Title          string  `json:"title"`
	Duration       float64 `json:"duration"`
	DurationString string  `json:"duration_string"`
}

// Downloader fetches a single source with yt-dlp and transcodes it to audio.
// Every outcome is reported as text.
type Downloader struct {
	binary       string
	outputDir    string
	audioFormat  string
	audioQuality string
	maxDuration  time.Duration
	timeout      time.Duration
	successText  string
	savedPrefix  string
	exec         Executor
	logger       *zap.Logger
}

type DownloaderOption func(*Downloader)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(e Executor) DownloaderOption {
	return func(d *Downloader) {
		if e != nil {
			d.exec = e
		}
	}
}

func WithLogger(l *zap.Logger) DownloaderOption {
	return func(d *Downloader) {
		if l != nil {
			d.logger = l
		}
	}
}

func NewDownloader(cfg config.DownloadConfig, markers config.MarkersConfig, opts ...DownloaderOption) (*Downloader, error) {
	binary := strings.TrimSpace(cfg.YtDlpBinary)
	if binary == "" {
		return nil, errors.New("yt-dlp binary required")
	}
	if strings.TrimSpace(cfg.OutputDir) == "" {
		return nil, errors.New("download output directory required")
	}
	d := &Downloader{
		binary:       binary,
		outputDir:    cfg.OutputDir,
		audioFormat:  defaultString(cfg.AudioFormat, "mp3"),
		audioQuality: defaultString(cfg.AudioQuality, "256K"),
		maxDuration:  cfg.MaxDuration,
		timeout:      cfg.Timeout,
		successText:  defaultString(markers.DownloadSuccess, "all downloads succeeded"),
		savedPrefix:  defaultString(markers.SavedPath, "saved local path:"),
		exec:         commandExecutor{},
		logger:       zap.NewNop(),
	}
	if d.maxDuration <= 0 {
		d.maxDuration = 600 * time.Second
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.Named("download")
	return d, nil
}

// Download probes url, rejects sources longer than the duration limit and
// otherwise extracts audio into the output directory.
func (d *Downloader) Download(ctx context.Context, url string) string {
	path, err := d.download(ctx, strings.TrimSpace(url))
	if err != nil {
		d.logger.Warn("download failed", zap.String("url", url), zap.Error(err))
		return "download failed: " + err.Error()
	}
	d.logger.Info("download finished", zap.String("url", url), zap.String("path", path))
	return fmt.Sprintf("%s. %s%s", d.successText, d.savedPrefix, path)
}

func (d *Downloader) download(ctx context.Context, url string) (string, error) {
	if url == "" {
		return "", errors.New("url must not be empty")
	}
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	meta, err := d.Probe(ctx, url)
	if err != nil {
		return "", err
	}
	if time.Duration(meta.Duration*float64(time.Second)) > d.maxDuration {
		return "", fmt.Errorf("duration %s is too long", durationLabel(meta))
	}

	if err := os.MkdirAll(d.outputDir, 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}
	lock := flock.New(filepath.Join(d.outputDir, lockFile))
	locked, err := lock.TryLockContext(ctx, 250*time.Millisecond)
	if err != nil {
		return "", fmt.Errorf("lock output directory: %w", err)
	}
	if !locked {
		return "", errors.New("output directory is busy")
	}
	defer func() { _ = lock.Unlock() }()

	args := []string{
		"--no-playlist", "--no-warnings", "--quiet",
		"-f", "bestaudio/best",
		"-x", "--audio-format", d.audioFormat, "--audio-quality", d.audioQuality,
		"-o", filepath.Join(d.outputDir, "%(title)s.%(ext)s"),
		"--print", "after_move:filepath",
		url,
	}
	out, err := d.exec.Run(ctx, d.binary, args)
	if err != nil {
		return "", fmt.Errorf("yt-dlp: %w", err)
	}
	path := lastLine(out)
	if path == "" {
		return "", errors.New("yt-dlp did not report an output file")
	}
	return path, nil
}

// Probe reads source metadata without downloading.
func (d *Downloader) Probe(ctx context.Context, url string) (Metadata, error) {
	out, err := d.exec.Run(ctx, d.binary, []string{"--dump-single-json", "--no-playlist", "--no-warnings", url})
	if err != nil {
		return Metadata{}, fmt.Errorf("probe: %w", err)
	}
	var meta Metadata
	if err := json.Unmarshal(out, &meta); err != nil {
		return Metadata{}, fmt.Errorf("probe: decode metadata: %w", err)
	}
	return meta, nil
}

func durationLabel(m Metadata) string {
	if m.DurationString != "" {
		return m.DurationString
	}
	return (time.Duration(m.Duration) * time.Second).String()
}

func lastLine(out []byte) string {
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			return l
		}
	}
	return ""
}

func defaultString(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
