package common

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
)

// GenerateUUID 生成 UUID
func GenerateUUID() string {
	return uuid.New().String()
}

// NormalizeSpace 去除前後空白並把連續空白壓成單一空格
func NormalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// HashKey 對字符串計算 SHA-256，用作快取鍵
func HashKey(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
