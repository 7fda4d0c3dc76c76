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

	"pensieve-go/internal/config"
	"pensieve-go/internal/handler"
	mcpserver "pensieve-go/internal/mcp"
	"pensieve-go/internal/middleware"
	"pensieve-go/internal/model"
	"pensieve-go/internal/pipeline"
	"pensieve-go/internal/repository"
	"pensieve-go/internal/service"
	"pensieve-go/pkg/database"
	"pensieve-go/pkg/es"
	"pensieve-go/pkg/kafka"
	"pensieve-go/pkg/log"
	"pensieve-go/pkg/token"
)

const version = "1.0.0"

func main() {
	// 1. 初始化配置
	config.Init("./configs/config.yaml")
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync()
	log.Info("日志记录器初始化成功")

	// 3. 初始化数据库和 Redis
	database.InitMySQL(cfg.Database.MySQL.DSN)
	database.InitRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
	if err := database.DB.AutoMigrate(&model.User{}, &model.Conversation{}); err != nil {
		log.Fatal("数据库表结构同步失败", err)
	}

	// 4. 初始化搜索索引侧路（ES + Kafka），不可用时搜索退回 SQL 匹配
	var searchIndex service.SearchIndex
	var indexProducer service.IndexProducer
	consumerCtx, cancelConsumer := context.WithCancel(context.Background())
	defer cancelConsumer()
	if cfg.Elasticsearch.Addresses != "" {
		if err := es.InitES(cfg.Elasticsearch); err != nil {
			log.Warnf("es 初始化失败，搜索将使用 SQL 兜底: %v", err)
		} else {
			searchIndex = pipeline.NewSearchAdapter(cfg.Elasticsearch)
			if cfg.Kafka.Brokers != "" {
				kafka.InitProducer(cfg.Kafka)
				indexProducer = pipeline.ProducerAdapter{}
				// 后台消费者把写入同步到索引
				go kafka.StartConsumer(consumerCtx, cfg.Kafka, pipeline.NewIndexer(cfg.Elasticsearch))
			}
		}
	}

	// 5. 初始化 Repository 和 Service (依赖注入)
	jwtManager := token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	userRepo := repository.NewUserRepository(database.DB)
	conversationRepo := repository.NewConversationRepository(database.DB)
	sessionRepo := repository.NewSessionRepository(database.RDB, time.Duration(cfg.JWT.ExpireHours)*time.Hour)

	userService := service.NewUserService(userRepo, jwtManager)
	conversationService := service.NewConversationService(conversationRepo, searchIndex, indexProducer)

	// 6. 初始化 MCP 工具服务，与 REST 面共用同一套 service
	mcpVersion := cfg.MCP.Version
	if mcpVersion == "" {
		mcpVersion = version
	}
	mcpSrv, err := mcpserver.NewServer(mcpserver.Config{
		Name:          cfg.MCP.Name,
		Version:       mcpVersion,
		Users:         userService,
		Conversations: conversationService,
		Sessions:      sessionRepo,
	})
	if err != nil {
		log.Fatal("MCP 服务初始化失败", err)
	}

	// 7. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(middleware.RequestLogger(), gin.Recovery())

	authHandler := handler.NewAuthHandler(userService)
	conversationHandler := handler.NewConversationHandler(conversationService)
	apiHandler := handler.NewAPIHandler(conversationService)
	healthHandler := handler.NewHealthHandler(version)
	authRequired := middleware.AuthMiddleware(userService)

	// 8. 注册路由
	r.GET("/health", healthHandler.Check)

	auth := r.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
	}

	conversations := r.Group("/conversations")
	conversations.Use(authRequired)
	{
		conversations.POST("", conversationHandler.Create)
		conversations.GET("", conversationHandler.List)
		conversations.GET("/search", conversationHandler.Search)
		conversations.GET("/:id", conversationHandler.Get)
		conversations.PUT("/:id", conversationHandler.Update)
		conversations.POST("/:id/messages", conversationHandler.Append)
		conversations.DELETE("/:id", conversationHandler.Delete)
	}

	// 前端面板使用的 /api 路由，与认证路由语义一致
	api := r.Group("/api")
	{
		api.POST("/register", authHandler.Register)
		api.POST("/login", authHandler.Login)

		authed := api.Group("/")
		authed.Use(authRequired)
		{
			authed.GET("/me", apiHandler.Me)
			authed.GET("/conversations", apiHandler.ListConversations)
			authed.GET("/conversations/:id", conversationHandler.Get)
			authed.DELETE("/conversations/:id", conversationHandler.Delete)
		}
	}

	// MCP 的 SSE 端点挂载在同一个 HTTP 服务上
	sseHandler := mcpSrv.SSEHandler()
	r.GET("/sse", gin.WrapH(sseHandler))
	r.POST("/sse", gin.WrapH(sseHandler))

	// 静态面板页面，目录不存在时跳过
	if cfg.Server.StaticDir != "" {
		if info, err := os.Stat(cfg.Server.StaticDir); err == nil && info.IsDir() {
			r.Static("/static", cfg.Server.StaticDir)
			r.StaticFile("/", cfg.Server.StaticDir+"/index.html")
			r.StaticFile("/dashboard", cfg.Server.StaticDir+"/dashboard.html")
			r.StaticFile("/guide", cfg.Server.StaticDir+"/guide.html")
			r.StaticFile("/setup", cfg.Server.StaticDir+"/setup.html")
			// 详情页是同一个页面按路径参数渲染，由前端脚本取 id
			detailPage := cfg.Server.StaticDir + "/conversation.html"
			r.GET("/conversation/:id", func(c *gin.Context) {
				c.File(detailPage)
			})
		}
	}

	// 9. 启动 HTTP 服务器并实现优雅停机
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

	cancelConsumer()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP 服务器关闭失败: %v", err)
	}

	log.Info("服务已优雅关闭")
}
