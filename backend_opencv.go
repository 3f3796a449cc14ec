//go:build !nocv

package main

import (
	"github.com/TIANLI0/LiftKit/config"
	"github.com/TIANLI0/LiftKit/service"
	"github.com/TIANLI0/LiftKit/vision"
)

func newVisionBackend(cfg *config.SegmentationConfig) service.VisionBackend {
	return vision.NewBackend(cfg)
}
