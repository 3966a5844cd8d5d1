package api

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/MilanEkanna/Backend-TaskManagement/internal/model"

	"golang.org/x/crypto/bcrypt"
)

// SeedAdmin 按配置播种初始管理员账号。
//
// 注册接口默认不接受客户端自带角色，管理员由这里引导创建：
// ADMIN_EMAIL 为空则跳过；账号已存在时只确保其角色为 admin。
func (s *Server) SeedAdmin(ctx context.Context) error {
	email := strings.TrimSpace(strings.ToLower(s.cfg.Security.AdminEmail))
	if email == "" {
		return nil
	}

	existing, err := s.users.UserByEmail(ctx, email)
	if err != nil {
		return err
	}
	if existing != nil {
		if existing.Role == model.RoleAdmin {
			return nil
		}
		if err := s.db.WithContext(ctx).Model(&model.User{}).
			Where("id = ?", existing.ID).
			Update("role", model.RoleAdmin).Error; err != nil {
			return err
		}
		s.logger.Info("admin role granted", slog.String("email", email))
		return nil
	}

	if s.cfg.Security.AdminPassword == "" {
		return fmt.Errorf("admin seed: ADMIN_PASSWORD not configured")
	}

	username := strings.TrimSpace(s.cfg.Security.AdminUsername)
	if username == "" {
		username = "admin"
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(s.cfg.Security.AdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	user := model.User{
		Username: username,
		Email:    email,
		Password: string(hash),
		Role:     model.RoleAdmin,
	}
	if err := s.users.CreateUser(ctx, &user); err != nil {
		return err
	}

	s.logger.Info("admin account seeded", slog.String("email", email))
	return nil
}
