package service

import (
	"context"
	"errors"
	"fmt"

	"tokenmarket/internal/model"
	"tokenmarket/internal/repository"

	"gorm.io/gorm"
)

type CourseService struct {
	db         *gorm.DB
	courseRepo *repository.CourseRepository
	tokenRepo  *repository.TokenRepository
	userRepo   *repository.UserRepository
}

func NewCourseService(db *gorm.DB) *CourseService {
	return &CourseService{
		db:         db,
		courseRepo: repository.NewCourseRepository(db),
		tokenRepo:  repository.NewTokenRepository(db),
		userRepo:   repository.NewUserRepository(db),
	}
}

type CreateCourseRequest struct {
	CreatorID          int64   `json:"creator_id" binding:"required"`
	Title              string  `json:"title" binding:"required"`
	Description        string  `json:"description"`
	PriceUSD           float64 `json:"price_usd" binding:"gte=0"`
	Category           string  `json:"category"`
	CoverImageURL      string  `json:"cover_image_url"`
	TokenSymbol        string  `json:"token_symbol" binding:"required,min=2,max=8"`
	TokenSupply        int64   `json:"token_supply" binding:"required,gt=0"`
	TreasuryETHAddress string  `json:"treasury_eth_address" binding:"required"`
}

// CreateCourse 创建课程
//
// 【关键点】课程与其代币记录必须同事务创建（二者缺一即回滚）：
// 代币记录初始全部供应量进国库（circulating=0, treasury=total），
// 购买发放依赖该记录存在，只建课程不建代币会破坏购买契约。
func (s *CourseService) CreateCourse(ctx context.Context, req *CreateCourseRequest) (*model.Course, error) {
	if req.TokenSupply <= 0 {
		return nil, errors.New("代币总量必须大于0")
	}

	if _, err := s.userRepo.GetByID(ctx, req.CreatorID); err != nil {
		return nil, err
	}

	course := &model.Course{
		CreatorID:          req.CreatorID,
		Title:              req.Title,
		Description:        req.Description,
		PriceUSD:           req.PriceUSD,
		Category:           req.Category,
		CoverImageURL:      req.CoverImageURL,
		TokenSymbol:        req.TokenSymbol,
		TokenSupply:        req.TokenSupply,
		TreasuryETHAddress: req.TreasuryETHAddress,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.courseRepo.Create(ctx, tx, course); err != nil {
			return fmt.Errorf("创建课程失败: %w", err)
		}

		token := &model.CourseToken{
			CourseID:             course.ID,
			TokenSymbol:          req.TokenSymbol,
			TotalSupply:          req.TokenSupply,
			CirculatingSupply:    0,
			TreasuryTokenBalance: req.TokenSupply,
			TreasuryRevenueUSD:   0,
			TreasuryETHAddress:   req.TreasuryETHAddress,
		}
		if err := s.tokenRepo.Create(ctx, tx, token); err != nil {
			return fmt.Errorf("创建课程代币记录失败: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return course, nil
}

// GetCourseDetail 查询课程详情及其代币快照
func (s *CourseService) GetCourseDetail(ctx context.Context, courseID int64) (*model.Course, *model.CourseToken, error) {
	course, err := s.courseRepo.GetByID(ctx, courseID)
	if err != nil {
		return nil, nil, err
	}

	token, err := s.tokenRepo.GetByCourseID(ctx, courseID)
	if err != nil {
		return nil, nil, err
	}

	return course, token, nil
}

func (s *CourseService) ListCourses(ctx context.Context, page, pageSize int) ([]*model.Course, int64, error) {
	return s.courseRepo.List(ctx, page, pageSize)
}
