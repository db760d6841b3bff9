package models

import (
	"errors"
	"strings"

	"github.com/dujiao-next/settlement/internal/logger"

	"golang.org/x/crypto/bcrypt"
)

const defaultBootstrapAdmin = "admin"

// EnsureBootstrapAdmin 不存在超级管理员时创建一个，返回是否新建
func EnsureBootstrapAdmin(username, password string) (bool, error) {
	if DB == nil {
		return false, errors.New("database not initialized")
	}
	var supers int64
	if err := DB.Model(&Admin{}).Where("is_super = ?", true).Count(&supers).Error; err != nil {
		return false, err
	}
	if supers > 0 {
		return false, nil
	}
	if password == "" {
		logger.Warnw("bootstrap_admin_skipped", "reason", "bootstrap.admin_password empty")
		return false, nil
	}
	username = strings.TrimSpace(username)
	if username == "" {
		username = defaultBootstrapAdmin
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return false, err
	}
	if err := DB.Create(&Admin{Username: username, PasswordHash: string(hash), IsSuper: true}).Error; err != nil {
		return false, err
	}
	logger.Infow("bootstrap_admin_created", "username", username)
	return true, nil
}
