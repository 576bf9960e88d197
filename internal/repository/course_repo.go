package repository

import (
	"context"
	"errors"

	"tokenmarket/internal/model"

	"gorm.io/gorm"
)

var ErrCourseNotFound = errors.New("课程不存在")

type CourseRepository struct {
	db *gorm.DB
}

func NewCourseRepository(db *gorm.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

func (r *CourseRepository) Create(ctx context.Context, tx *gorm.DB, course *model.Course) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(course).Error
}

func (r *CourseRepository) GetByID(ctx context.Context, courseID int64) (*model.Course, error) {
	var course model.Course
	err := r.db.WithContext(ctx).Where("id = ?", courseID).First(&course).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCourseNotFound
		}
		return nil, err
	}
	return &course, nil
}

func (r *CourseRepository) List(ctx context.Context, page, pageSize int) ([]*model.Course, int64, error) {
	var courses []*model.Course
	var total int64

	query := r.db.WithContext(ctx).Model(&model.Course{})

	err := query.Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	err = query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&courses).Error

	return courses, total, err
}
