package importer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"fanwiki/internal/logger"
	"fanwiki/internal/models"
)

const parallelUploads = 4

type Result struct {
	File string
	URL  string
	Err  error
}

// Uploader is the part of Client the runner needs.
type Uploader interface {
	Presign(ctx context.Context, kind models.Kind, fileAmount int) ([]string, error)
	PutObject(ctx context.Context, url string, data []byte) error
	Submit(ctx context.Context, kind models.Kind, input models.PostInput) (string, error)
}

type Runner struct {
	root   string
	client Uploader
}

func NewRunner(root string, client Uploader) *Runner {
	return &Runner{root: root, client: client}
}

// Run imports every file of the category, at most four at a time. A failing
// file never stops the others; results come back in the order of files.
func (r *Runner) Run(ctx context.Context, category Category, files []string) []Result {
	results := make([]Result, len(files))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelUploads)
	for i, file := range files {
		g.Go(func() error {
			url, err := r.importFile(ctx, category, file)
			results[i] = Result{File: filepath.Base(file), URL: url, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (r *Runner) importFile(ctx context.Context, category Category, path string) (string, error) {
	log := logger.Component("importer")

	upload, err := category.Build(r.root, path)
	if err != nil {
		return "", err
	}

	extra := 0
	if upload.Logo != "" {
		extra = 1
	}
	urls, err := r.client.Presign(ctx, category.Kind, len(upload.Files)+extra)
	if err != nil {
		return "", err
	}
	thumbnailURL := urls[len(urls)-1]

	var total uint64
	put := func(url, file string) error {
		data, err := os.ReadFile(file)
		if err != nil {
			return err
		}
		if err := r.client.PutObject(ctx, url, data); err != nil {
			return fmt.Errorf("%s: %w", filepath.Base(file), err)
		}
		total += uint64(len(data))
		return nil
	}

	if err := put(thumbnailURL, upload.Thumbnail); err != nil {
		return "", fmt.Errorf("thumbnail: %w", err)
	}
	attached := make([]string, len(upload.Files))
	for i, file := range upload.Files {
		if err := put(urls[i], file); err != nil {
			return "", err
		}
		attached[i] = urls[i]
	}
	if upload.Logo != "" {
		logoURL := urls[len(upload.Files)]
		if err := put(logoURL, upload.Logo); err != nil {
			return "", fmt.Errorf("logo: %w", err)
		}
		upload.Input.Character.LogoKey = &logoURL
	}

	upload.Input.ThumbnailKey = thumbnailURL
	upload.Input.AttachedKeys = attached

	location, err := r.client.Submit(ctx, category.Kind, upload.Input)
	if err != nil {
		return "", err
	}
	log.Debug().Str("file", filepath.Base(path)).Str("uploaded", humanize.Bytes(total)).Str("url", location).Msg("imported")
	return location, nil
}

// Failed returns the results that carry an error.
func Failed(results []Result) []Result {
	var out []Result
	for _, res := range results {
		if res.Err != nil {
			out = append(out, res)
		}
	}
	return out
}
