//go:build nocv

package main

import (
	"github.com/TIANLI0/LiftKit/config"
	"github.com/TIANLI0/LiftKit/service"
)

// 未链接 OpenCV 的构建没有视觉后端，抠图接口会返回 unavailable
func newVisionBackend(cfg *config.SegmentationConfig) service.VisionBackend {
	return nil
}
