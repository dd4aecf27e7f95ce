package models

import (
	"strings"
	"time"

	"github.com/lib/pq"
)

// Kind is the post category. Its value doubles as the URL segment and the
// object-store folder name.
type Kind string

const (
	KindArt        Kind = "art"
	KindStories    Kind = "stories"
	KindCharacters Kind = "characters"
)

var Kinds = []Kind{KindArt, KindStories, KindCharacters}

func ParseKind(s string) (Kind, bool) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, true
		}
	}
	return "", false
}

func (k Kind) PerPage() int {
	switch k {
	case KindStories:
		return 12
	default:
		return 24
	}
}

func (k Kind) ThumbnailSettings() LossySettings {
	return LossySettings{MaxWidth: 180, MaxHeight: 150, Quality: 60}
}

// RequiresAttachments reports whether a post of this kind must carry at least one file.
func (k Kind) RequiresAttachments() bool {
	return k == KindArt
}

// LossySettings bounds a lossy re-encode. Zero max dimensions mean unbounded.
type LossySettings struct {
	MaxWidth  int
	MaxHeight int
	Quality   int
}

var ProfilePictureSettings = LossySettings{MaxWidth: 150, MaxHeight: 150, Quality: 85}

type PostState string

const (
	StateProcessing      PostState = "processing"
	StatePendingApproval PostState = "pending_approval"
	StatePublic          PostState = "public"
)

// PlaceholderThumbnail is stored while a post is still Processing.
const PlaceholderThumbnail = "placeholder"

type Post struct {
	ID           int32          `json:"id" db:"id"`
	Kind         Kind           `json:"kind" db:"kind"`
	Slug         string         `json:"slug" db:"slug"`
	Title        string         `json:"title" db:"title"`
	Creators     pq.StringArray `json:"creators" db:"creators"`
	CreationDate Date           `json:"creation_date" db:"creation_date"`
	Tags         pq.StringArray `json:"tags" db:"tags"`
	IsNSFW       bool           `json:"is_nsfw" db:"is_nsfw"`
	Description  *string        `json:"description,omitempty" db:"description"`
	ThumbnailKey string         `json:"thumbnail_key" db:"thumbnail_key"`
	State        PostState      `json:"post_state" db:"post_state"`
	OwnerID      *int32         `json:"owner_id,omitempty" db:"owner_id"`
	LastModified time.Time      `json:"last_modified" db:"last_modified"`
	PublishedAt  *time.Time     `json:"published_at,omitempty" db:"published_at"`

	AttachedKeys []string          `json:"attached_keys" db:"-"`
	Story        *StoryDetails     `json:"story,omitempty" db:"-"`
	Character    *CharacterDetails `json:"character,omitempty" db:"-"`
}

// Folder is the permanent object-store folder of the post, with a trailing slash.
func (p *Post) Folder() string {
	return FolderFor(p.Kind, p.ID)
}

func (p *Post) URL() string {
	return "/" + string(p.Kind) + "/" + p.Slug
}

type StoryDetails struct {
	InPageTitle *string `json:"in_page_title,omitempty" db:"in_page_title"`
	Tagline     *string `json:"tagline,omitempty" db:"tagline"`
	Body        string  `json:"body" db:"body"`
	CustomCSS   *string `json:"custom_css,omitempty" db:"custom_css"`
	PrevSlug    *string `json:"prev_slug,omitempty" db:"prev_slug"`
	NextSlug    *string `json:"next_slug,omitempty" db:"next_slug"`
}

type InfoboxRow struct {
	Title string `json:"title"`
	Value string `json:"value"`
}

type CharacterDetails struct {
	LongName     *string        `json:"long_name,omitempty" db:"long_name"`
	Subtitles    pq.StringArray `json:"subtitles" db:"subtitles"`
	Infobox      []InfoboxRow   `json:"infobox" db:"-"`
	OverlayCSS   *string        `json:"overlay_css,omitempty" db:"overlay_css"`
	Birthday     *string        `json:"birthday,omitempty" db:"birthday"`
	LogoKey      *string        `json:"logo_key,omitempty" db:"logo_key"`
	PageContents string         `json:"page_contents" db:"page_contents"`
}

type Attachment struct {
	PostID   int32  `db:"post_id"`
	Position int    `db:"position"`
	FileKey  string `db:"file_key"`
}

type Comment struct {
	ID        int64     `json:"id" db:"id"`
	PostID    int32     `json:"post_id" db:"post_id"`
	AuthorID  int32     `json:"author_id" db:"author_id"`
	Author    string    `json:"author" db:"author"`
	Contents  string    `json:"contents" db:"contents"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Pin is a progress marker of the art archival project.
type Pin struct {
	Link string `json:"link"`
	Date Date   `json:"date"`
}

// AppLink rewrites a web Discord link so it opens in the desktop app.
func (p Pin) AppLink() string {
	return strings.Replace(p.Link, "https://discord.com/", "discord://-/", 1)
}

func (p Pin) ReadableDate() string {
	if p.Date.IsZero() {
		return "never"
	}
	return p.Date.Format("January 02, 2006")
}
