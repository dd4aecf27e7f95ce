package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"fanwiki/internal/models"
)

type DetailsRepositoryImpl struct {
	db *sqlx.DB
}

func NewDetailsRepository(db *sqlx.DB) *DetailsRepositoryImpl {
	return &DetailsRepositoryImpl{db: db}
}

func (r *DetailsRepositoryImpl) GetStory(ctx context.Context, postID int32) (*models.StoryDetails, error) {
	query := `SELECT in_page_title, tagline, body, custom_css, prev_slug, next_slug FROM story_detail WHERE post_id = $1`

	var story models.StoryDetails
	if err := r.db.GetContext(ctx, &story, query, postID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get story details: %w", err)
	}
	return &story, nil
}

func (r *DetailsRepositoryImpl) SaveStory(ctx context.Context, postID int32, story *models.StoryDetails) error {
	query := `
		INSERT INTO story_detail (post_id, in_page_title, tagline, body, custom_css, prev_slug, next_slug)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (post_id) DO UPDATE SET
			in_page_title = EXCLUDED.in_page_title,
			tagline = EXCLUDED.tagline,
			body = EXCLUDED.body,
			custom_css = EXCLUDED.custom_css,
			prev_slug = EXCLUDED.prev_slug,
			next_slug = EXCLUDED.next_slug`

	_, err := r.db.ExecContext(ctx, query, postID,
		story.InPageTitle, story.Tagline, story.Body, story.CustomCSS, story.PrevSlug, story.NextSlug)
	if err != nil {
		return fmt.Errorf("save story details: %w", err)
	}
	return nil
}

type characterRow struct {
	models.CharacterDetails
	Infobox []byte `db:"infobox"`
}

func (r *DetailsRepositoryImpl) GetCharacter(ctx context.Context, postID int32) (*models.CharacterDetails, error) {
	query := `SELECT long_name, subtitles, infobox, overlay_css, birthday, logo_key, page_contents
		FROM character_detail WHERE post_id = $1`

	var row characterRow
	if err := r.db.GetContext(ctx, &row, query, postID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get character details: %w", err)
	}

	character := row.CharacterDetails
	if len(row.Infobox) > 0 {
		if err := json.Unmarshal(row.Infobox, &character.Infobox); err != nil {
			return nil, fmt.Errorf("decode infobox: %w", err)
		}
	}
	return &character, nil
}

func (r *DetailsRepositoryImpl) SaveCharacter(ctx context.Context, postID int32, character *models.CharacterDetails) error {
	infobox := character.Infobox
	if infobox == nil {
		infobox = []models.InfoboxRow{}
	}
	encoded, err := json.Marshal(infobox)
	if err != nil {
		return fmt.Errorf("encode infobox: %w", err)
	}

	query := `
		INSERT INTO character_detail (post_id, long_name, subtitles, infobox, overlay_css, birthday, logo_key, page_contents)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (post_id) DO UPDATE SET
			long_name = EXCLUDED.long_name,
			subtitles = EXCLUDED.subtitles,
			infobox = EXCLUDED.infobox,
			overlay_css = EXCLUDED.overlay_css,
			birthday = EXCLUDED.birthday,
			logo_key = EXCLUDED.logo_key,
			page_contents = EXCLUDED.page_contents`

	_, err = r.db.ExecContext(ctx, query, postID,
		character.LongName,
		pq.StringArray(character.Subtitles),
		string(encoded),
		character.OverlayCSS,
		character.Birthday,
		character.LogoKey,
		character.PageContents,
	)
	if err != nil {
		return fmt.Errorf("save character details: %w", err)
	}
	return nil
}
