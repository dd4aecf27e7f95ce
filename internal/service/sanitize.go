package service

import (
	"regexp"
	"strings"
	"unicode"

	"fanwiki/internal/models"
	"fanwiki/internal/storage"
)

var (
	slugPattern     = regexp.MustCompile(`^[a-z0-9]+([-_][a-z0-9]+)*$`)
	birthdayPattern = regexp.MustCompile(`^(0[1-9]|1[0-2])-(0[1-9]|[12][0-9]|3[01])$`)
	reservedSlugs   = map[string]bool{"new": true}
)

const (
	maxFileAmount      = 35
	maxDisplayNameLen  = 36
	displayNameSymbols = " _-.!?():"
)

func ValidSlug(slug string) bool {
	return slugPattern.MatchString(slug) && !reservedSlugs[slug]
}

// SanitizeTags trims and lowercases tags, joins inner whitespace with '-',
// and drops empties, duplicates and the nsfw/sfw markers. It is idempotent.
func SanitizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, tag := range tags {
		tag = strings.Join(strings.Fields(strings.ToLower(tag)), "-")
		if tag == "" || tag == "nsfw" || tag == "sfw" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	return out
}

// SanitizeList trims every entry and drops the empty ones.
func SanitizeList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// SanitizeDisplayName collapses whitespace and accepts the result only if it
// is 1 to 36 ASCII characters from [A-Za-z0-9 _-.!?():].
func SanitizeDisplayName(name string) (string, bool) {
	name = strings.Join(strings.Fields(name), " ")
	if len(name) == 0 || len(name) > maxDisplayNameLen {
		return "", false
	}
	for _, r := range name {
		if r > unicode.MaxASCII {
			return "", false
		}
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || strings.ContainsRune(displayNameSymbols, r)) {
			return "", false
		}
	}
	return name, true
}

func trimOptional(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// sanitizeInput normalises a submitted post in place before validation.
func sanitizeInput(in *models.PostInput, publicBucket string) {
	in.Slug = strings.TrimSpace(in.Slug)
	in.Title = strings.TrimSpace(in.Title)
	in.Creators = SanitizeList(in.Creators)
	in.Tags = SanitizeTags(in.Tags)
	in.Description = trimOptional(in.Description)

	if key, ok := storage.CleanUserKey(in.ThumbnailKey, publicBucket); ok {
		in.ThumbnailKey = key
	} else {
		in.ThumbnailKey = ""
	}

	keys := make([]string, 0, len(in.AttachedKeys))
	for _, raw := range in.AttachedKeys {
		if key, ok := storage.CleanUserKey(raw, publicBucket); ok {
			keys = append(keys, key)
		}
	}
	in.AttachedKeys = keys

	if s := in.Story; s != nil {
		s.InPageTitle = trimOptional(s.InPageTitle)
		s.Tagline = trimOptional(s.Tagline)
		s.Body = strings.TrimSpace(s.Body)
		s.CustomCSS = trimOptional(s.CustomCSS)
		s.PrevSlug = trimOptional(s.PrevSlug)
		s.NextSlug = trimOptional(s.NextSlug)
	}

	if c := in.Character; c != nil {
		c.LongName = trimOptional(c.LongName)
		c.Subtitles = SanitizeList(c.Subtitles)
		c.OverlayCSS = trimOptional(c.OverlayCSS)
		c.Birthday = trimOptional(c.Birthday)
		c.PageContents = strings.TrimSpace(c.PageContents)
		if c.LogoKey != nil {
			if key, ok := storage.CleanUserKey(*c.LogoKey, publicBucket); ok {
				c.LogoKey = &key
			} else {
				c.LogoKey = nil
			}
		}
		rows := c.Infobox[:0]
		for _, row := range c.Infobox {
			row.Title, row.Value = strings.TrimSpace(row.Title), strings.TrimSpace(row.Value)
			if row.Title != "" {
				rows = append(rows, row)
			}
		}
		c.Infobox = rows
	}
}

// validateInput checks a sanitised post. The slug uniqueness check is left to the caller.
func validateInput(kind models.Kind, in *models.PostInput, today models.Date) *Error {
	switch {
	case !ValidSlug(in.Slug):
		return BadRequest("slug must be lowercase letters and digits separated by '-' or '_', and cannot be \"new\"")
	case in.Title == "":
		return BadRequest("title cannot be empty")
	case len(in.Creators) == 0:
		return BadRequest("at least one creator is required")
	case in.CreationDate.IsZero():
		return BadRequest("creation date is required")
	case in.CreationDate.After(today):
		return BadRequest("creation date cannot be in the future")
	case in.ThumbnailKey == "":
		return BadRequest("a thumbnail is required")
	case kind.RequiresAttachments() && len(in.AttachedKeys) == 0:
		return BadRequest("at least one file is required")
	}

	for _, tag := range in.Tags {
		if !slugPattern.MatchString(tag) {
			return BadRequest("invalid tag: " + tag)
		}
	}

	if c := in.Character; c != nil && c.Birthday != nil && !birthdayPattern.MatchString(*c.Birthday) {
		return BadRequest("birthday must be in MM-DD format")
	}
	if s := in.Story; s != nil {
		for _, ref := range []*string{s.PrevSlug, s.NextSlug} {
			if ref != nil && !slugPattern.MatchString(*ref) {
				return BadRequest("invalid story reference: " + *ref)
			}
		}
	}
	return nil
}

// Paginate returns the requested page clamped to [1, pages] and the page
// count, which is at least 1 so an empty index still renders.
func Paginate(count int64, perPage, requested int) (page, pages int) {
	if perPage <= 0 {
		perPage = 1
	}
	pages = max(int((count+int64(perPage)-1)/int64(perPage)), 1)
	page = min(max(requested, 1), pages)
	return page, pages
}
