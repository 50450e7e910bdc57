package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"apod-explorer/internal/domain"
)

// DefaultLinkTTL is how long a shared archive link stays valid.
const DefaultLinkTTL = 24 * time.Hour

var (
	// ErrNotImage is returned for pictures whose media cannot be archived (videos).
	ErrNotImage = errors.New("only images can be archived")
	// ErrNoMedia is returned when the picture carries no media URL.
	ErrNoMedia = errors.New("picture has no media url")
)

type ArchiveConfig struct {
	Bucket    string
	KeyPrefix string
	LinkTTL   time.Duration
	// HTTPClient downloads the media; http.DefaultClient when nil.
	HTTPClient *http.Client
	Logger     logrus.FieldLogger
}

// Archived describes one stored picture.
type Archived struct {
	Key      string
	Location string
	URL      string
	// Existing is set when the object was already in the bucket and no upload happened.
	Existing bool
}

// Archiver copies picture media into object storage and hands out shareable links.
type Archiver struct {
	store   Service
	http    *http.Client
	bucket  string
	prefix  string
	linkTTL time.Duration
	logger  logrus.FieldLogger
}

func NewArchiver(store Service, cfg ArchiveConfig) *Archiver {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	if cfg.LinkTTL <= 0 {
		cfg.LinkTTL = DefaultLinkTTL
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &Archiver{
		store:   store,
		http:    cfg.HTTPClient,
		bucket:  cfg.Bucket,
		prefix:  strings.Trim(cfg.KeyPrefix, "/"),
		linkTTL: cfg.LinkTTL,
		logger:  cfg.Logger,
	}
}

// ObjectKey returns "<prefix>/<date>/<file>" for the picture's preferred media.
func (a *Archiver) ObjectKey(pic domain.Picture) (string, error) {
	raw := pic.BestURL()
	if raw == "" {
		return "", ErrNoMedia
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse media url: %w", err)
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" || name == "" {
		name = "media"
	}

	parts := []string{pic.Date, name}
	if a.prefix != "" {
		parts = append([]string{a.prefix}, parts...)
	}
	return strings.Join(parts, "/"), nil
}

// Archive uploads the picture (HD variant when present) unless it is already stored,
// then presigns a link to it.
func (a *Archiver) Archive(ctx context.Context, pic domain.Picture, progress func(done, total int64)) (*Archived, error) {
	if pic.MediaType != domain.MediaTypeImage {
		return nil, ErrNotImage
	}
	key, err := a.ObjectKey(pic)
	if err != nil {
		return nil, err
	}
	logger := a.logger.WithFields(logrus.Fields{"date": pic.Date, "key": key})

	existing, err := a.store.ListObjects(ctx, a.bucket, key)
	if err != nil {
		return nil, err
	}
	out := &Archived{Key: key, Location: fmt.Sprintf("s3://%s/%s", a.bucket, key)}
	for _, obj := range existing {
		if obj.Key == key {
			out.Existing = true
			break
		}
	}

	if !out.Existing {
		location, err := a.transfer(ctx, pic.BestURL(), key, progress)
		if err != nil {
			return nil, err
		}
		out.Location = location
		logger.Info("picture archived")
	} else {
		logger.Debug("picture already archived")
	}

	link, err := a.store.GetObjectURL(ctx, a.bucket, key, a.linkTTL)
	if err != nil {
		return nil, err
	}
	out.URL = link
	return out, nil
}

func (a *Archiver) transfer(ctx context.Context, mediaURL, key string, progress func(done, total int64)) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return "", fmt.Errorf("build media request: %w", err)
	}
	resp, err := a.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("download media: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download media: unexpected status %s", resp.Status)
	}

	return a.store.Upload(ctx, key, resp.Body, UploadOptions{
		Bucket:           a.bucket,
		ContentType:      resp.Header.Get("Content-Type"),
		Size:             resp.ContentLength,
		ProgressCallback: progress,
	})
}
