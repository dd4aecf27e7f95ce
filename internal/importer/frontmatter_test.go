package importer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fanwiki/internal/models"
)

func TestParseFrontMatterArt(t *testing.T) {
	raw := []byte("---\n" +
		"title: Sunset\n" +
		"img-file: sunset.png\n" +
		"artist:\n  - Ana\n  - Bo\n" +
		"tags: [nsfw, landscape]\n" +
		"date: 03.04.24\n" +
		"---\n\nPainted at the beach.\n")

	fm, body, err := ParseFrontMatter[ArtFrontMatter](raw)

	require.NoError(t, err)
	assert.Equal(t, "Sunset", fm.Title)
	assert.Equal(t, stringList{"sunset.png"}, fm.Images)
	assert.Equal(t, stringList{"Ana", "Bo"}, fm.Artists)
	assert.Equal(t, "Painted at the beach.", body)

	date, err := fm.Date.Date()
	require.NoError(t, err)
	assert.Equal(t, models.NewDate(2024, 4, 3), date)
}

func TestParseFrontMatterErrors(t *testing.T) {
	_, _, err := ParseFrontMatter[ArtFrontMatter]([]byte("title: no delimiters\n"))
	assert.ErrorIs(t, err, ErrNoFrontMatter)

	_, _, err = ParseFrontMatter[ArtFrontMatter]([]byte("---\ntitle: unterminated\n"))
	assert.ErrorIs(t, err, ErrNoFrontMatter)

	_, _, err = ParseFrontMatter[ArtFrontMatter]([]byte("---\nartist: {a: b}\n---\n"))
	assert.Error(t, err)
}

func TestParseFrontMatterInfoboxKeepsOrder(t *testing.T) {
	raw := []byte("---\r\n" +
		"character-title: Volt\r\n" +
		"infobox-data:\r\n  Height: 180\r\n  Alive: true\r\n  Alias: Sparky\r\n" +
		"---\r\n")

	fm, body, err := ParseFrontMatter[CharacterFrontMatter](raw)

	require.NoError(t, err)
	assert.Empty(t, body)
	assert.Equal(t, []models.InfoboxRow{
		{Title: "Height", Value: "180"},
		{Title: "Alive", Value: "true"},
		{Title: "Alias", Value: "Sparky"},
	}, []models.InfoboxRow(fm.Infobox))
}

func TestNormalizeDate(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"03.04.24", "2024-04-03"},
		{"3.4.24", "2024-04-03"},
		{"03-04-2021", "2021-04-03"},
		{"03.04.2021", "2021-04-03"},
		{"18.12.18", "2018-12-18"},
		{"26.01.26", "2026-01-26"},
		{"23-05-10", "2023-05-10"},
		{"2022-11-05", "2022-11-05"},
		{" 2022.11.05 ", "2022-11-05"},
		{"yesterday", "yesterday"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeDate(tt.in))
		})
	}
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "big-sky", Slug("/x/src/_art-archive/Big Sky.md"))
	assert.Equal(t, "volt", Slug("Volt.MD"))
}

func TestSplitNSFW(t *testing.T) {
	tags, nsfw := splitNSFW([]string{"sfw", "city", "nsfw", "night"})
	assert.True(t, nsfw)
	assert.Equal(t, []string{"city", "night"}, tags)

	tags, nsfw = splitNSFW([]string{"sfw"})
	assert.False(t, nsfw)
	assert.Empty(t, tags)
}
