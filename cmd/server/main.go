// Package main 是应用程序的入口点。
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"spend-insight-go/internal/config"
	"spend-insight-go/internal/export"
	"spend-insight-go/internal/handler"
	"spend-insight-go/internal/middleware"
	"spend-insight-go/internal/repository"
	"spend-insight-go/internal/service"
	"spend-insight-go/pkg/backend"
	"spend-insight-go/pkg/database"
	"spend-insight-go/pkg/log"
	"spend-insight-go/pkg/token"
)

func main() {
	// 1. 初始化配置
	config.Init("./configs/config.yaml")
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")

	// 3. 初始化 Redis（网关侧会话状态）
	database.InitRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)

	// 4. 初始化 Repository
	sessionStateRepo := repository.NewSessionStateRepository(database.RDB)

	// 5. 初始化 Service (依赖注入)
	jwtManager := token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpireHours)
	gateway := backend.NewClient(cfg.Backend)
	sessionService := service.NewSessionService(gateway, sessionStateRepo)
	historyService := service.NewHistoryService(gateway)
	queryService := service.NewQueryService(gateway, sessionService, cfg.Chat.SessionLimit())
	conversationService := service.NewConversationService()
	exportService := export.NewService(gateway)

	// 6. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New() // 使用 New() 创建一个不带默认中间件的引擎
	// 添加我们自定义的日志中间件和 Gin 的 Recovery 中间件
	r.Use(middleware.RequestLogger(), gin.Recovery())

	// 7. 注册路由
	api := r.Group("/api")
	api.Use(middleware.IdentityMiddleware(jwtManager, cfg.Identity.UserID()))
	{
		chatHandler := handler.NewChatHandler(queryService, conversationService, sessionService)
		sessionHandler := handler.NewSessionHandler(sessionService, historyService, conversationService, cfg.Chat)
		exportHandler := handler.NewExportHandler(exportService)
		statsHandler := handler.NewStatsHandler(gateway)

		chat := api.Group("/chat")
		{
			chat.POST("/query", chatHandler.Query)
			chat.POST("/query/reexecute", chatHandler.ReExecute)
			chat.GET("/messages", chatHandler.Messages)

			chat.POST("/sessions", sessionHandler.Create)
			chat.GET("/sessions", sessionHandler.List)
			chat.POST("/sessions/:sessionId/switch", sessionHandler.Switch)
			chat.GET("/sessions/:sessionId/history", sessionHandler.History)

			chat.POST("/export", exportHandler.Full)
			chat.POST("/export/rows", exportHandler.Rows)
		}

		// 统计与图表端点是只读透传代理
		api.GET("/stats", statsHandler.Proxy("/api/stats", "Failed to fetch statistics"))
		api.GET("/category-spend", statsHandler.Proxy("/api/category-spend", "Failed to fetch category spend"))
		api.GET("/vendor-analytics/risk-assessment", statsHandler.Proxy("/api/vendor-analytics/risk-assessment", "Failed to fetch risk assessment"))
		api.GET("/vendor-analytics/performance-scorecard", statsHandler.Proxy("/api/vendor-analytics/performance-scorecard", "Failed to fetch performance scorecard"))
	}

	// 8. 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	// 设置一个5秒的超时上下文
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// 关闭 HTTP 服务器
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP 服务器关闭失败: %v", err)
	}

	log.Info("服务已优雅关闭")
}
