package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"time"

	"filegate/internal/api"
	"filegate/internal/config"
	"filegate/internal/database"
	"filegate/internal/logging"
	"filegate/internal/repository/postgres"
	"filegate/internal/service"
	miniostore "filegate/internal/storage/minio"
	"filegate/internal/thumbnail"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := logging.New()
	logger.Println("配置加载完成，开始启动服务")

	db, err := database.Connect(context.Background(), cfg)
	if err != nil {
		logger.Fatalf("连接数据库失败: %v", err)
	}
	defer db.Close()

	store, err := miniostore.New(miniostore.Config{
		Endpoint:      cfg.S3Endpoint,
		AccessKey:     cfg.S3AccessKey,
		SecretKey:     cfg.S3SecretKey,
		Region:        cfg.S3Region,
		UseSSL:        cfg.S3UseSSL,
		PresignExpiry: cfg.PresignExpiry,
	})
	if err != nil {
		logger.Fatalf("连接对象存储失败: %v", err)
	}

	repo := postgres.NewFileRepository(db)
	svc := service.New(repo, store, thumbnail.New(), logger, service.Options{
		PartSize:       cfg.PartSizeBytes,
		PreviewWidth:   cfg.PreviewWidth,
		PreviewQuality: cfg.PreviewQuality,
	})

	handler := api.NewStorageHandler(svc, cfg.SingleUploadLimit)
	router := api.NewRouter(cfg, handler, logger)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		ReadTimeout:  5 * time.Minute, // 直传接口的请求体可能很大
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
		Handler:      router,
	}

	logger.Printf("服务监听端口 :%s\n", cfg.HTTPPort)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("监听失败: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Printf("优雅关闭失败: %v", err)
	}

	logger.Println("服务已停止")
}
