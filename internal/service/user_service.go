package service

import (
	"context"
	"errors"

	"tokenmarket/internal/model"
	"tokenmarket/internal/repository"

	"gorm.io/gorm"
)

type UserService struct {
	userRepo *repository.UserRepository
	db       *gorm.DB
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{
		userRepo: repository.NewUserRepository(db),
		db:       db,
	}
}

type CreateUserRequest struct {
	Name       string `json:"name" binding:"required"`
	Email      string `json:"email" binding:"required,email"`
	Role       string `json:"role" binding:"omitempty,oneof=creator buyer both"`
	ETHAddress string `json:"eth_address"`
}

func (s *UserService) CreateUser(ctx context.Context, req *CreateUserRequest) (*model.User, error) {
	role := req.Role
	if role == "" {
		role = model.UserRoleBoth
	}

	user := &model.User{
		Name:       req.Name,
		Email:      req.Email,
		Role:       role,
		ETHAddress: req.ETHAddress,
		IsActive:   true,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, errors.New("创建用户失败，邮箱可能已被占用")
	}
	return user, nil
}

func (s *UserService) GetUser(ctx context.Context, userID int64) (*model.User, error) {
	return s.userRepo.GetByID(ctx, userID)
}

func (s *UserService) ListUsers(ctx context.Context, page, pageSize int) ([]*model.User, int64, error) {
	return s.userRepo.List(ctx, page, pageSize)
}
