package util

import (
	"strings"

	"github.com/google/uuid"
)

// GenerateShortUUID 生成一个不带中划线的短 UUID
func GenerateShortUUID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

// NormalizeSpace 折叠连续空白并去掉首尾空白
func NormalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
