package importer

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"fanwiki/internal/models"
)

var ErrNoFrontMatter = errors.New("no front matter")

// stringList accepts either a single scalar or a sequence of scalars.
type stringList []string

func (l *stringList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*l = stringList{node.Value}
		return nil
	case yaml.SequenceNode:
		var values []string
		if err := node.Decode(&values); err != nil {
			return err
		}
		*l = values
		return nil
	}
	return fmt.Errorf("line %d: expected a string or a list of strings", node.Line)
}

// looseDate keeps the raw date text so hand-written formats survive decoding.
type looseDate string

func (d *looseDate) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: date must be a scalar", node.Line)
	}
	*d = looseDate(node.Value)
	return nil
}

func (d looseDate) Date() (models.Date, error) {
	if d == "" {
		return models.Date{}, errors.New("date is missing")
	}
	return models.ParseDate(NormalizeDate(string(d)))
}

// infobox keeps the key order of a YAML mapping. Values of any scalar type are
// kept as written.
type infobox []models.InfoboxRow

func (b *infobox) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: infobox must be a mapping", node.Line)
	}
	rows := make([]models.InfoboxRow, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		rows = append(rows, models.InfoboxRow{
			Title: node.Content[i].Value,
			Value: node.Content[i+1].Value,
		})
	}
	*b = rows
	return nil
}

type ArtFrontMatter struct {
	Title         string     `yaml:"title"`
	Format        string     `yaml:"format"`
	Images        stringList `yaml:"img-file"`
	ThumbnailFile string     `yaml:"thumbnail-file"`
	Artists       stringList `yaml:"artist"`
	Tags          []string   `yaml:"tags"`
	Date          looseDate  `yaml:"date"`
}

type StoryFrontMatter struct {
	Title          string     `yaml:"title"`
	InPageTitle    string     `yaml:"in-page-title"`
	Tagline        string     `yaml:"tagline"`
	Description    string     `yaml:"description"`
	Authors        stringList `yaml:"author"`
	Tags           []string   `yaml:"tags"`
	Date           looseDate  `yaml:"date"`
	ContinuationOf string     `yaml:"continuation-of"`
	Sequel         string     `yaml:"sequel"`
	ThumbnailFile  string     `yaml:"thumbnail-file"`
}

type CharacterFrontMatter struct {
	Title      string     `yaml:"character-title"`
	LongName   string     `yaml:"inpage-character-title"`
	Subtitles  stringList `yaml:"character-subtitle"`
	Author     string     `yaml:"character-author"`
	LogoFile   string     `yaml:"logo-file"`
	ImageFile  string     `yaml:"character-img-file"`
	Infobox    infobox    `yaml:"infobox-data"`
	OverlayCSS string     `yaml:"css-code"`
	Birthday   string     `yaml:"birthday"`
	Date       looseDate  `yaml:"date"`
}

// ParseFrontMatter decodes the YAML block delimited by "---" lines at the top
// of raw and returns it with the remaining markdown body.
func ParseFrontMatter[T any](raw []byte) (T, string, error) {
	var fm T

	raw = bytes.ReplaceAll(raw, []byte("\r\n"), []byte("\n"))
	rest, ok := bytes.CutPrefix(raw, []byte("---\n"))
	if !ok {
		return fm, "", ErrNoFrontMatter
	}

	var header, body []byte
	if bytes.HasPrefix(rest, []byte("---\n")) || bytes.Equal(rest, []byte("---")) {
		header, body = nil, bytes.TrimPrefix(rest, []byte("---"))
	} else {
		var found bool
		header, body, found = bytes.Cut(rest, []byte("\n---"))
		if !found {
			return fm, "", ErrNoFrontMatter
		}
	}

	if err := yaml.Unmarshal(header, &fm); err != nil {
		return fm, "", fmt.Errorf("parse front matter: %w", err)
	}
	return fm, strings.TrimSpace(string(body)), nil
}

// NormalizeDate rewrites DD.MM.YY, DD-MM-YY, DD.MM.YYYY and DD-MM-YYYY into
// YYYY-MM-DD. Two-digit years from 18 to 26 are taken as 20YY. Anything else
// is returned with dots replaced by dashes.
func NormalizeDate(s string) string {
	s = strings.ReplaceAll(strings.TrimSpace(s), ".", "-")
	parts := strings.Split(s, "-")
	if len(parts) != 3 {
		return s
	}
	first, second, third := parts[0], parts[1], parts[2]

	switch {
	case len(first) <= 2 && len(third) == 2:
		yy, err := strconv.Atoi(third)
		if err != nil {
			return s
		}
		if yy >= 18 && yy <= 26 {
			return "20" + third + "-" + pad2(second) + "-" + pad2(first)
		}
		return "20" + pad2(first) + "-" + pad2(second) + "-" + third
	case len(first) <= 2 && len(third) == 4:
		return third + "-" + pad2(second) + "-" + pad2(first)
	case len(first) == 4:
		return first + "-" + pad2(second) + "-" + pad2(third)
	}
	return s
}

func pad2(s string) string {
	if len(s) == 1 {
		return "0" + s
	}
	return s
}

// Slug derives a post slug from a markdown file name.
func Slug(path string) string {
	name := strings.ToLower(filepath.Base(path))
	name = strings.TrimSuffix(name, ".md")
	return strings.ReplaceAll(name, " ", "-")
}

// splitNSFW drops the nsfw and sfw marker tags and reports whether nsfw was present.
func splitNSFW(tags []string) ([]string, bool) {
	out := make([]string, 0, len(tags))
	nsfw := false
	for _, tag := range tags {
		switch tag {
		case "nsfw":
			nsfw = true
		case "sfw":
		default:
			out = append(out, tag)
		}
	}
	return out, nsfw
}
