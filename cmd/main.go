package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"xcard-backend/internal/bot"
	"xcard-backend/internal/config"
	"xcard-backend/internal/handler"
	"xcard-backend/internal/model"
	"xcard-backend/internal/render"
	"xcard-backend/internal/service"
	"xcard-backend/internal/social"
	"xcard-backend/internal/source"
	"xcard-backend/internal/storage"
	"xcard-backend/internal/translate"
	"xcard-backend/internal/utils"
	"xcard-backend/pkg/logger"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	var configPath, envFile string
	flag.StringVar(&configPath, "config", "./configs/config.yaml", "配置文件路径")
	flag.StringVar(&envFile, "env", ".env", ".env 文件路径")
	flag.Parse()

	// .env 不存在时忽略
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Failed to load %s: %v", envFile, err)
	}

	// 加载配置
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化日志
	if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 初始化服务
	pool := render.NewPool(render.ChromeLauncher(cfg.Render))
	cards := newCardService(ctx, cfg, pool)

	// 创建路由
	router := setupRouter(cfg, handler.NewCardHandler(cards))

	// 创建HTTP服务器
	server := &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        router,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	// 启动服务器
	go func() {
		logger.Infof("服务器启动在端口 %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("服务器启动失败: %v", err)
		}
	}()

	var tgBot *bot.Bot
	if cfg.Bot.Enabled {
		tgBot = newBot(cfg, cards, pool)
		if err := tgBot.Start(ctx); err != nil {
			logger.Fatalf("bot 启动失败: %v", err)
		}
	}

	// token 和 chat id 每轮轮询重新读取，热更新后无需重启
	config.Watch(func(c *config.Config) {
		logger.SetLevel(c.Log.Level)
		logger.WithFields(logrus.Fields{
			"bot_configured": c.Bot.Token != "" && c.Bot.ChatID != 0,
		}).Info("配置已重新加载")
	})

	// 等待信号优雅关闭
	<-ctx.Done()
	logger.Info("服务器正在关闭...")

	if tgBot != nil {
		tgBot.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("服务器关闭失败: %v", err)
	}
	pool.Close()
	logger.Info("服务器已关闭")
}

func newCardService(ctx context.Context, cfg *config.Config, pool *render.Pool) *service.CardService {
	translator := translate.New(
		translate.NewGoogleBackend(cfg.Translate),
		translate.WithTargetLang(cfg.Translate.TargetLang),
		translate.WithChunkMax(cfg.Translate.ChunkMax),
		translate.WithConcurrency(cfg.Translate.Concurrency),
		translate.WithCacheSize(cfg.Translate.CacheSize),
	)

	opts := []service.CardOption{
		service.WithFetcher(source.NewClient(cfg.Fetch)),
		service.WithTranslator(translator),
		service.WithRenderer(pool),
	}

	if writer := newWriter(ctx, cfg); writer != nil {
		opts = append(opts, service.WithWriter(writer))
	}
	return service.NewCardService(opts...)
}

// newWriter 未配置 AI 时返回 nil，文案功能关闭
func newWriter(ctx context.Context, cfg *config.Config) *social.Writer {
	chatModel, err := model.NewChatModel(ctx, cfg.AI)
	if err != nil {
		if errors.Is(err, model.ErrAINotConfigured) {
			logger.Warn("未配置 AI，社群文案功能关闭")
		} else {
			logger.WithError(err).Error("创建文案模型失败，社群文案功能关闭")
		}
		return nil
	}

	opts := []social.Option{
		social.WithTemperature(cfg.AI.Temperature),
		social.WithMaxTokens(cfg.AI.MaxTokens),
	}
	if cfg.Search.Enabled {
		opts = append(opts, social.WithSearcher(social.NewDuckDuckGo(cfg.Search)))
	}

	writer, err := social.NewWriter(ctx, chatModel, opts...)
	if err != nil {
		logger.WithError(err).Error("创建文案生成器失败，社群文案功能关闭")
		return nil
	}
	return writer
}

func newBot(cfg *config.Config, cards bot.Cards, pool *render.Pool) *bot.Bot {
	// long poll 需要比 poll_timeout 更长的 http 超时
	httpClient := utils.NewHTTPClient(time.Duration(cfg.Bot.PollTimeout)*time.Second + 15*time.Second)

	credentials := func() (string, int64) {
		c := config.Get()
		return c.Bot.Token, c.Bot.ChatID
	}

	return bot.New(
		cards,
		storage.NewMemoryStore(),
		credentials,
		bot.NewConnector(cfg.Bot.APIEndpoint, httpClient),
		bot.WithPollTimeout(cfg.Bot.PollTimeout),
		bot.WithGenerationTimeout(cfg.Bot.GenerationTimeout),
		bot.WithOnStop(pool.Close),
	)
}

func setupRouter(cfg *config.Config, cardHandler *handler.CardHandler) *gin.Engine {
	// 设置gin模式
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// 中间件
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(handler.RequestID())

	// CORS配置
	corsConfig := cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		ExposeHeaders:    cfg.CORS.ExposedHeaders,
		AllowCredentials: cfg.CORS.AllowCredentials,
		MaxAge:           time.Duration(cfg.CORS.MaxAge) * time.Second,
	}
	router.Use(cors.New(corsConfig))

	cardHandler.Register(router)
	router.NoRoute(handler.NotFound)

	return router
}
