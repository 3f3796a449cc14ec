package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/TIANLI0/LiftKit/config"
	"github.com/TIANLI0/LiftKit/handler"
	"github.com/TIANLI0/LiftKit/middleware"
	"github.com/TIANLI0/LiftKit/service"
	"github.com/TIANLI0/LiftKit/utils"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	BuildID   = "unknown"
	GitCommit = "unknown"
	GitBranch = "unknown"
)

func main() {
	// 加载配置
	cfg := config.New()

	// 初始化日志
	if err := utils.InitLogger(cfg.Server.Mode); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer utils.Sync()

	utils.Logger.Info("starting LiftKit server",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
		zap.String("git_branch", GitBranch))

	// 确保上传和输出目录存在
	for _, dir := range []string{cfg.Upload.UploadDir, cfg.Output.Dir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			utils.Logger.Fatal("failed to create directory", zap.String("dir", dir), zap.Error(err))
		}
	}

	// 初始化Redis
	store := service.NewCutoutStore(&cfg.Redis)
	ctx := context.Background()
	if err := store.Ping(ctx); err != nil {
		utils.Logger.Warn("redis connection failed, cutout lookup disabled", zap.Error(err))
	} else {
		utils.Logger.Info("redis connected successfully")
	}
	defer store.Close()

	// 初始化抠图流水线
	segmenter := service.NewSegmenter(newVisionBackend(&cfg.Segmentation), cfg.Segmentation.Timeout)
	compositor := service.NewCompositor(cfg.Output.Dir, cfg.Output.Prefix)
	lifter := service.NewLifter(segmenter, compositor)
	if !lifter.Available() {
		utils.Logger.Warn("subject lifting unavailable", zap.String("remedy", service.UnavailableRemedy))
	}

	// 定时清理过期抠图
	if cfg.Output.Retention > 0 {
		janitor := service.NewJanitor(cfg.Output.Dir, cfg.Output.Prefix, cfg.Output.Retention)
		if err := janitor.Start(cfg.Output.SweepSchedule); err != nil {
			utils.Logger.Fatal("failed to start cutout janitor", zap.Error(err))
		}
		defer janitor.Stop()
	}

	liftHandler := handler.NewLiftHandler(cfg, lifter, store)

	// 设置Gin模式
	gin.SetMode(cfg.Server.Mode)

	// 创建路由
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.CORS())
	r.MaxMultipartMemory = cfg.Upload.MaxSize

	// 健康检查和版本信息
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":    "ok",
			"version":   Version,
			"available": lifter.Available(),
		})
	})

	r.GET("/version", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"version":    Version,
			"build_time": BuildTime,
			"build_id":   BuildID,
			"git_commit": GitCommit,
			"git_branch": GitBranch,
		})
	})

	// API路由
	liftHandler.Register(r.Group("/api/v1"))

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// 启动服务器
	utils.Logger.Info("server starting", zap.String("port", cfg.Server.Port))
	if err := srv.ListenAndServe(); err != nil {
		utils.Logger.Fatal("failed to start server", zap.Error(err))
	}
}
