package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fyerfyer/doc-audit-system/api"
	"github.com/fyerfyer/doc-audit-system/api/handler"
	"github.com/fyerfyer/doc-audit-system/api/middleware"
	auditconfig "github.com/fyerfyer/doc-audit-system/config"
	"github.com/fyerfyer/doc-audit-system/internal/cache"
	"github.com/fyerfyer/doc-audit-system/internal/database"
	"github.com/fyerfyer/doc-audit-system/internal/document"
	"github.com/fyerfyer/doc-audit-system/internal/repository"
	"github.com/fyerfyer/doc-audit-system/internal/services"
	"github.com/fyerfyer/doc-audit-system/pkg/storage"
	"github.com/fyerfyer/doc-audit-system/pkg/taskqueue"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

func main() {
	// 加载.env文件（如果存在），环境变量優先级高于文件
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded environment from .env file")
	}

	configFile := flag.String("config", "", "Path to config file")
	mode := flag.String("mode", "release", "Run mode (debug/release)")
	flag.Parse()

	cfg, err := auditconfig.Load(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 设置Gin模式
	gin.SetMode(*mode)

	// 初始化日志
	logger := setupLogger(cfg.Logging)
	logger.Info("Starting Document Audit System...")

	// 初始化数据库
	dbConfig := &database.Config{
		Type: cfg.Database.Type,
		DSN:  cfg.Database.DSN,
	}
	if err := database.Setup(dbConfig, logger); err != nil {
		logger.Fatalf("Failed to initialize database: %v", err)
	}
	defer func() {
		if err := database.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close database")
		}
	}()

	// 创建文件存储服务
	fileStorage, err := setupStorage(cfg.Storage)
	if err != nil {
		logger.Fatalf("Failed to initialize storage: %v", err)
	}

	// 创建缓存服务（共享进度存储）
	cacheService, err := setupCache(cfg.Cache)
	if err != nil {
		logger.Fatalf("Failed to initialize cache: %v", err)
	}

	// 初始化任务队列（如果启用）
	var queue taskqueue.Queue
	if cfg.Queue.Enable {
		queue, err = setupTaskQueue(cfg.Queue, logger)
		if err != nil {
			logger.Fatalf("Failed to initialize task queue: %v", err)
		}
		defer queue.Close()
		logger.Info("Task queue initialized successfully")
	}

	// 初始化业务服务
	var repo repository.DocumentRepository
	if queue != nil {
		repo = repository.NewDocumentRepositoryWithQueue(database.MustDB(), queue)
		logger.Info("Using document repository with task queue")
	} else {
		repo = repository.NewDocumentRepository()
	}

	statusManager := services.NewDocumentStatusManager(repo, logger)

	// 创建文档处理流水线
	processor := services.NewDocumentProcessor(
		services.WithProcessorLogger(logger),
		services.WithValidator(document.NewFileValidator(document.ValidatorConfig{
			MaxFileSize:      cfg.Document.MaxFileSize,
			StrictMIMECheck:  cfg.Document.StrictMIMECheck,
			AllowExecutables: cfg.Document.AllowExecutables,
		})),
		services.WithChunker(document.NewSemanticChunker(document.ChunkerConfig{
			MaxTokens:     cfg.Document.MaxTokens,
			OverlapTokens: cfg.Document.OverlapTokens,
			MinChunkSize:  cfg.Document.MinChunkSize,
		})),
	)

	documentServiceOptions := []services.DocumentOption{
		services.WithDocumentRepository(repo),
		services.WithStatusManager(statusManager),
		services.WithProgressCache(cacheService),
		services.WithProgressTTL(time.Duration(cfg.Document.ProgressTTL) * time.Second),
		services.WithTimeout(time.Duration(cfg.Document.ProcessTimeout) * time.Second),
		services.WithLogger(logger),
	}

	if queue != nil {
		documentServiceOptions = append(documentServiceOptions,
			services.WithTaskQueue(queue),
			services.WithAsyncProcessing(true),
		)
		logger.Info("Document processing will use async task queue")
	}

	documentService := services.NewDocumentService(
		fileStorage,
		processor,
		documentServiceOptions...,
	)

	// 启动队列工作者
	var worker taskqueue.Worker
	if queue != nil {
		worker, err = setupWorker(queue, cfg.Queue, documentService, logger)
		if err != nil {
			logger.Fatalf("Failed to start task queue worker: %v", err)
		}
		defer worker.Stop()
	}

	// 初始化API处理器和路由
	docHandler := handler.NewDocumentHandler(documentService)
	r := api.SetupRouter(docHandler)

	// 启动HTTP服务器
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	// 优雅关闭
	go func() {
		logger.Infof("Server is running on %s:%d", cfg.Server.Host, cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// 等待终止信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatalf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited")
}

// setupLogger 设置日志系统
// 配置了日志文件时使用lumberjack滚动写入
func setupLogger(cfg auditconfig.LoggingConfig) *logrus.Logger {
	logger := middleware.GetLogger()

	switch cfg.Level {
	case "debug":
		logger.SetLevel(logrus.DebugLevel)
	case "info":
		logger.SetLevel(logrus.InfoLevel)
	case "warn":
		logger.SetLevel(logrus.WarnLevel)
	case "error":
		logger.SetLevel(logrus.ErrorLevel)
	default:
		logger.SetLevel(logrus.InfoLevel)
	}

	if cfg.File != "" {
		logger.SetOutput(&lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		})
	}

	return logger
}

// setupStorage 设置文件存储服务
func setupStorage(cfg auditconfig.StorageConfig) (storage.Storage, error) {
	switch cfg.Type {
	case "minio":
		return storage.NewMinioStorage(storage.MinioConfig{
			Endpoint:  cfg.Endpoint,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			UseSSL:    cfg.UseSSL,
			Bucket:    cfg.Bucket,
		})
	default:
		return storage.NewLocalStorage(storage.LocalConfig{
			Path: cfg.Path,
		})
	}
}

// setupCache 设置缓存服务
func setupCache(cfg auditconfig.CacheConfig) (cache.Cache, error) {
	cacheConfig := cache.Config{
		Type:            cfg.Type,
		DefaultTTL:      time.Duration(cfg.TTL) * time.Second,
		CleanupInterval: 10 * time.Minute,
	}

	if cfg.Type == "redis" {
		cacheConfig.RedisAddr = cfg.Address
		cacheConfig.RedisPassword = cfg.Password
		cacheConfig.RedisDB = cfg.DB
	}

	return cache.NewCache(cacheConfig)
}

// setupTaskQueue 设置任务队列
func setupTaskQueue(cfg auditconfig.QueueConfig, logger *logrus.Logger) (taskqueue.Queue, error) {
	queueConfig := &taskqueue.Config{
		RedisAddr:     cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
		RedisDB:       cfg.RedisDB,
		Concurrency:   cfg.Concurrency,
		RetryLimit:    cfg.RetryLimit,
		RetryDelay:    time.Duration(cfg.RetryDelay) * time.Second,
	}

	logger.WithFields(logrus.Fields{
		"type":        cfg.Type,
		"redis_addr":  cfg.RedisAddr,
		"concurrency": cfg.Concurrency,
		"retry_limit": cfg.RetryLimit,
	}).Info("Setting up task queue")

	return taskqueue.NewQueue(cfg.Type, queueConfig)
}

// setupWorker 启动队列工作者处理文档任务
func setupWorker(queue taskqueue.Queue, cfg auditconfig.QueueConfig, documentService *services.DocumentService, logger *logrus.Logger) (taskqueue.Worker, error) {
	redisQueue, ok := queue.(*taskqueue.RedisQueue)
	if !ok {
		return nil, fmt.Errorf("unsupported queue type for worker: %T", queue)
	}

	worker := taskqueue.NewRedisWorker(redisQueue, &taskqueue.Config{
		RedisAddr:     cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
		RedisDB:       cfg.RedisDB,
		Concurrency:   cfg.Concurrency,
		RetryLimit:    cfg.RetryLimit,
		RetryDelay:    time.Duration(cfg.RetryDelay) * time.Second,
	})
	taskHandler := services.NewDocumentTaskHandler(documentService, queue, logger)
	worker.RegisterHandler(taskqueue.TaskProcessDocument, taskHandler)

	if err := worker.Start(); err != nil {
		return nil, fmt.Errorf("failed to start worker: %w", err)
	}

	logger.WithField("concurrency", cfg.Concurrency).Info("Task queue worker started")
	return worker, nil
}
