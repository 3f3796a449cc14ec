package service

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/TIANLI0/LiftKit/utils"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Janitor 定期清理过期的抠图输出和写入中断残留的临时文件
type Janitor struct {
	dir       string
	prefix    string
	retention time.Duration
	now       func() time.Time
	cron      *cron.Cron
}

func NewJanitor(dir, prefix string, retention time.Duration) *Janitor {
	return &Janitor{
		dir:       dir,
		prefix:    prefix,
		retention: retention,
		now:       time.Now,
	}
}

// Start 按 cron 表达式启动定时清理
func (j *Janitor) Start(schedule string) error {
	j.cron = cron.New()
	if _, err := j.cron.AddFunc(schedule, func() { j.Sweep() }); err != nil {
		return err
	}
	j.cron.Start()

	utils.Logger.Info("cutout janitor started",
		zap.String("dir", j.dir),
		zap.String("schedule", schedule),
		zap.Duration("retention", j.retention))
	return nil
}

// Stop 停止定时清理并等待正在执行的任务结束
func (j *Janitor) Stop() {
	if j.cron == nil {
		return
	}
	<-j.cron.Stop().Done()
}

// Sweep 删除超过保留时间的文件，返回删除数量
func (j *Janitor) Sweep() int {
	entries, err := os.ReadDir(j.dir)
	if err != nil {
		utils.Logger.Warn("failed to read cutout dir", zap.String("dir", j.dir), zap.Error(err))
		return 0
	}

	cutoff := j.now().Add(-j.retention)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !j.owns(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}

		path := filepath.Join(j.dir, entry.Name())
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			utils.Logger.Warn("failed to delete expired cutout", zap.String("file", path), zap.Error(err))
			continue
		}
		removed++
	}

	if removed > 0 {
		utils.Logger.Info("expired cutouts removed", zap.Int("count", removed))
	}
	return removed
}

func (j *Janitor) owns(name string) bool {
	if strings.HasPrefix(name, j.prefix) && strings.HasSuffix(name, ".png") {
		return true
	}
	// 写入中断后残留的临时文件：".<最终文件名><随机数>"
	return strings.HasPrefix(name, "."+j.prefix)
}
