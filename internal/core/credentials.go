package core

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// ErrMissingCredentials .env 或环境变量中缺少账号密码
var ErrMissingCredentials = errors.New("缺少登录凭据 (TIKTOK_ACCOUNT / TIKTOK_PASSWORD)")

// 凭据环境变量
const (
	EnvAccount  = "TIKTOK_ACCOUNT"
	EnvPassword = "TIKTOK_PASSWORD"
)

// Credentials TikTok登录凭据
type Credentials struct {
	Account  string
	Password string
}

// LoadCredentials 读取 .env 文件后从环境变量取凭据
// .env 不存在时只使用已有的环境变量, 已设置的环境变量不会被 .env 覆盖
func LoadCredentials(envFile string) (Credentials, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Credentials{}, fmt.Errorf("读取 %s 失败: %w", envFile, err)
		}
	}

	creds := Credentials{
		Account:  strings.TrimSpace(os.Getenv(EnvAccount)),
		Password: os.Getenv(EnvPassword),
	}
	if creds.Account == "" || creds.Password == "" {
		return creds, ErrMissingCredentials
	}
	return creds, nil
}
