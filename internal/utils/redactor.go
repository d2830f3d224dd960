package utils

import (
	"strings"
)

var (
	// SensitiveKeywords 敏感字段名称关键字 (用于脱敏)
	SensitiveKeywords = []string{
		"password",
		"token",
		"secret",
		"cookie",
		"credential",
	}
)

// Redactor 敏感信息脱敏器
// 负责在日志输出前隐藏账号、密码等信息
type Redactor struct {
	sensitiveKeywords []string
}

// NewRedactor 创建脱敏器
func NewRedactor() *Redactor {
	return &Redactor{
		sensitiveKeywords: SensitiveKeywords,
	}
}

// IsSensitive 根据字段名判断是否需要完全隐藏
func (r *Redactor) IsSensitive(name string) bool {
	nameLower := strings.ToLower(name)
	for _, keyword := range r.sensitiveKeywords {
		if strings.Contains(nameLower, keyword) {
			return true
		}
	}
	return false
}

// Redact 脱敏单个字段值
func (r *Redactor) Redact(name, value string) string {
	if value == "" {
		return ""
	}

	// 策略1: 密码类字段 - 完全隐藏
	if r.IsSensitive(name) {
		return "***"
	}

	// 策略2: 邮箱账号 - 保留首字母和域名
	if at := strings.Index(value, "@"); at > 0 {
		return value[:1] + "***" + value[at:]
	}

	// 策略3: 普通账号 - 显示前2位+后2位 (如果足够长)
	if len(value) > 6 {
		return value[:2] + "***" + value[len(value)-2:]
	}

	return "***"
}
