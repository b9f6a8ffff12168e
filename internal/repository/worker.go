package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/RodrigoCConte/monofloor-admin-sub002/internal/model"
	"github.com/RodrigoCConte/monofloor-admin-sub002/pkg/errors"
)

type WorkerRepository struct {
	db *gorm.DB
}

func (r *WorkerRepository) Create(ctx context.Context, w *model.Worker) error {
	return r.db.WithContext(ctx).Create(w).Error
}

func (r *WorkerRepository) Update(ctx context.Context, w *model.Worker) error {
	return r.db.WithContext(ctx).Save(w).Error
}

func (r *WorkerRepository) Get(ctx context.Context, id int64) (*model.Worker, error) {
	var w model.Worker
	if err := r.db.WithContext(ctx).First(&w, id).Error; err != nil {
		if isNotFound(err) {
			return nil, errors.WorkerNotFound
		}
		return nil, fmt.Errorf("failed to query worker: %w", err)
	}
	return &w, nil
}

// ListActive 返回所有在职工人，按 id 排序
func (r *WorkerRepository) ListActive(ctx context.Context) ([]*model.Worker, error) {
	var workers []*model.Worker
	err := r.db.WithContext(ctx).
		Where("status = ?", model.WorkerStatusActive).
		Order("id").
		Find(&workers).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list active workers: %w", err)
	}
	return workers, nil
}

// GetMany 批量查询，返回 id -> worker
func (r *WorkerRepository) GetMany(ctx context.Context, ids []int64) (map[int64]*model.Worker, error) {
	result := make(map[int64]*model.Worker, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	var workers []*model.Worker
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&workers).Error; err != nil {
		return nil, fmt.Errorf("failed to query workers: %w", err)
	}
	for _, w := range workers {
		result[w.ID] = w
	}
	return result, nil
}

type SiteRepository struct {
	db *gorm.DB
}

func (r *SiteRepository) Create(ctx context.Context, s *model.Site) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *SiteRepository) Get(ctx context.Context, id int64) (*model.Site, error) {
	var s model.Site
	if err := r.db.WithContext(ctx).First(&s, id).Error; err != nil {
		if isNotFound(err) {
			return nil, errors.SiteNotFound
		}
		return nil, fmt.Errorf("failed to query site: %w", err)
	}
	return &s, nil
}

func (r *SiteRepository) GetMany(ctx context.Context, ids []int64) (map[int64]*model.Site, error) {
	result := make(map[int64]*model.Site, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	var sites []*model.Site
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&sites).Error; err != nil {
		return nil, fmt.Errorf("failed to query sites: %w", err)
	}
	for _, s := range sites {
		result[s.ID] = s
	}
	return result, nil
}
