package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

var ErrUnknownStep = errors.New("unknown posting step")

// PostInput is the metadata a client submits in the second upload step.
type PostInput struct {
	Slug         string            `json:"slug"`
	Title        string            `json:"title"`
	Creators     []string          `json:"creators"`
	CreationDate Date              `json:"creation_date"`
	Tags         []string          `json:"tags"`
	IsNSFW       bool              `json:"is_nsfw"`
	Description  *string           `json:"description,omitempty"`
	ThumbnailKey string            `json:"thumbnail_key"`
	AttachedKeys []string          `json:"attached_keys"`
	Story        *StoryDetails     `json:"story,omitempty"`
	Character    *CharacterDetails `json:"character,omitempty"`
}

// PostingStep is one of the two upload phases, selected by the "step" field.
// Exactly one of FileAmount and Metadata is set after decoding.
type PostingStep[T any] struct {
	FileAmount *int
	Metadata   *T
}

type presignBody struct {
	FileAmount *int `json:"file_amount"`
}

func (s *PostingStep[T]) UnmarshalJSON(data []byte) error {
	var head struct {
		Step json.RawMessage `json:"step"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}

	step, err := stepValue(head.Step)
	if err != nil {
		return err
	}

	switch step {
	case "1":
		var body presignBody
		if err := json.Unmarshal(data, &body); err != nil {
			return err
		}
		if body.FileAmount == nil {
			return errors.New("file_amount is required for step 1")
		}
		s.FileAmount = body.FileAmount
		s.Metadata = nil
	case "2":
		var meta T
		if err := json.Unmarshal(data, &meta); err != nil {
			return err
		}
		s.FileAmount = nil
		s.Metadata = &meta
	default:
		return fmt.Errorf("%w: %q", ErrUnknownStep, step)
	}
	return nil
}

func stepValue(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", fmt.Errorf("%w: missing", ErrUnknownStep)
	}
	if s, err := strconv.Unquote(string(raw)); err == nil {
		return s, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownStep, raw)
}

// PresignResponse answers the first upload step.
type PresignResponse struct {
	PresignedURLs []string `json:"presigned_urls"`
}

func FolderFor(kind Kind, id int32) string {
	return fmt.Sprintf("%s/%d/", kind, id)
}
