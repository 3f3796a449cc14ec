package utils

import (
	"github.com/google/uuid"
	"github.com/segmentio/ksuid"
)

// GenerateID 生成按时间排序的记录ID
func GenerateID() string {
	return ksuid.New().String()
}

// CutoutName 生成抠图文件名，每次调用都不同
func CutoutName(prefix string) string {
	return prefix + uuid.NewString() + ".png"
}
