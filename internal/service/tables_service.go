package service

import (
	"context"

	"fanwiki/internal/models"
	"fanwiki/internal/repository"
)

type Status struct {
	Tables int                   `json:"tables"`
	Posts  map[models.Kind]int64 `json:"posts"`
}

type TablesService interface {
	Status(ctx context.Context) (*Status, error)
}

type tablesService struct {
	tablesRepo repository.TablesRepository
}

func NewTablesService(tablesRepo repository.TablesRepository) TablesService {
	return &tablesService{tablesRepo: tablesRepo}
}

func (t *tablesService) Status(ctx context.Context) (*Status, error) {
	countTables, err := t.tablesRepo.CountTablesDB(ctx)
	if err != nil {
		return nil, err
	}

	posts, err := t.tablesRepo.CountPublicPosts(ctx)
	if err != nil {
		return nil, err
	}

	return &Status{Tables: countTables, Posts: posts}, nil
}
