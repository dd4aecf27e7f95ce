package importer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"fanwiki/internal/models"
)

const thumbnailMissTag = "thumbnail-miss"

// Upload is one post ready to be sent: its metadata plus the local files
// that still need presigned URLs.
type Upload struct {
	Input     models.PostInput
	Thumbnail string
	Files     []string
	Logo      string
}

// Category is a content folder of the site source tree and the way its
// markdown files turn into uploads.
type Category struct {
	Name   string
	Kind   models.Kind
	Folder string
	build  func(root, path string) (*Upload, error)
}

var (
	Art = Category{
		Name:   "art",
		Kind:   models.KindArt,
		Folder: "src/_art-archive",
		build:  buildArt,
	}
	Stories = Category{
		Name:   "stories",
		Kind:   models.KindStories,
		Folder: "src/_stories",
		build:  buildStory,
	}
	Characters = Category{
		Name:   "characters",
		Kind:   models.KindCharacters,
		Folder: "src/_characters",
		build:  buildCharacter,
	}
)

// Files lists the markdown files of the category. Names starting with "_" are skipped.
func (c Category) Files(root string) ([]string, error) {
	dir := filepath.Join(root, c.Folder)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, "_") || !strings.EqualFold(filepath.Ext(name), ".md") {
			continue
		}
		files = append(files, filepath.Join(dir, name))
	}
	return files, nil
}

func (c Category) Build(root, path string) (*Upload, error) {
	return c.build(root, path)
}

// ResolveThumbnail finds the thumbnail of an art piece in dir. The declared
// file wins when it exists; otherwise the first image's base name is tried
// bare, then with .png and .jpg. The second result is false when nothing matched.
func ResolveThumbnail(dir, declared string, images []string) (string, bool) {
	var candidates []string
	if declared != "" {
		candidates = append(candidates, declared)
	}
	if len(images) > 0 {
		base := filepath.Base(images[0])
		if i := strings.Index(base, "."); i >= 0 {
			base = base[:i]
		}
		candidates = append(candidates, base, base+".png", base+".jpg")
	}

	for _, name := range candidates {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, true
		}
	}
	return "", false
}

func readBody[T any](path string) (T, string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		var zero T
		return zero, "", err
	}
	return ParseFrontMatter[T](raw)
}

func optional(s string) *string {
	if s = strings.TrimSpace(s); s == "" {
		return nil
	}
	return &s
}

func buildArt(root, path string) (*Upload, error) {
	fm, body, err := readBody[ArtFrontMatter](path)
	if err != nil {
		return nil, err
	}
	if len(fm.Images) == 0 {
		return nil, errors.New("img-file is empty")
	}
	date, err := fm.Date.Date()
	if err != nil {
		return nil, err
	}

	imageDir := filepath.Join(root, "src/assets/img/art-archive")
	files := make([]string, len(fm.Images))
	for i, img := range fm.Images {
		files[i] = filepath.Join(imageDir, strings.TrimPrefix(img, "/"))
	}

	tags, nsfw := splitNSFW(fm.Tags)
	thumbnail, ok := ResolveThumbnail(filepath.Join(imageDir, "thumbnails"), fm.ThumbnailFile, fm.Images)
	if !ok {
		tags = append(tags, thumbnailMissTag)
		thumbnail = files[0]
	}

	return &Upload{
		Input: models.PostInput{
			Slug:         Slug(path),
			Title:        fm.Title,
			Creators:     fm.Artists,
			CreationDate: date,
			Tags:         tags,
			IsNSFW:       nsfw,
			Description:  optional(body),
		},
		Thumbnail: thumbnail,
		Files:     files,
	}, nil
}

func buildStory(root, path string) (*Upload, error) {
	fm, body, err := readBody[StoryFrontMatter](path)
	if err != nil {
		return nil, err
	}
	date, err := fm.Date.Date()
	if err != nil {
		return nil, err
	}

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	thumbnail, ok := ResolveThumbnail(filepath.Join(root, "src/assets/img/stories/thumbnails"), fm.ThumbnailFile, []string{base})
	if !ok {
		return nil, fmt.Errorf("no thumbnail found for %s", base)
	}

	tags, nsfw := splitNSFW(fm.Tags)
	return &Upload{
		Input: models.PostInput{
			Slug:         Slug(path),
			Title:        fm.Title,
			Creators:     fm.Authors,
			CreationDate: date,
			Tags:         tags,
			IsNSFW:       nsfw,
			Description:  optional(fm.Description),
			Story: &models.StoryDetails{
				InPageTitle: optional(fm.InPageTitle),
				Tagline:     optional(fm.Tagline),
				Body:        body,
				PrevSlug:    optional(fm.ContinuationOf),
				NextSlug:    optional(fm.Sequel),
			},
		},
		Thumbnail: thumbnail,
	}, nil
}

func buildCharacter(root, path string) (*Upload, error) {
	fm, body, err := readBody[CharacterFrontMatter](path)
	if err != nil {
		return nil, err
	}
	if fm.ImageFile == "" {
		return nil, errors.New("character-img-file is empty")
	}

	date := models.Today()
	if fm.Date != "" {
		if date, err = fm.Date.Date(); err != nil {
			return nil, err
		}
	}

	slug := Slug(path)
	upload := &Upload{
		Input: models.PostInput{
			Slug:         slug,
			Title:        fm.Title,
			Creators:     []string{fm.Author},
			CreationDate: date,
			Tags:         []string{slug},
			Character: &models.CharacterDetails{
				LongName:     optional(fm.LongName),
				Subtitles:    []string(fm.Subtitles),
				Infobox:      fm.Infobox,
				OverlayCSS:   optional(fm.OverlayCSS),
				Birthday:     optional(fm.Birthday),
				PageContents: body,
			},
		},
		Thumbnail: filepath.Join(root, "src/assets/img/characters/thumbnails", strings.ReplaceAll(slug, "-", " ")+".png"),
		Files:     []string{filepath.Join(root, "src/assets/img", strings.TrimPrefix(fm.ImageFile, "/"))},
	}
	if fm.LogoFile != "" {
		upload.Logo = filepath.Join(root, "src/assets/img/characters/logos", fm.LogoFile)
	}
	return upload, nil
}
