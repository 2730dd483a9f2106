package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/IBM/sarama"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"

	"editSessionServer/backend/internal/cache"
	"editSessionServer/backend/internal/httpapi/handlers"
	"editSessionServer/backend/internal/httpapi/middleware"
	"editSessionServer/backend/internal/session"
	"editSessionServer/backend/internal/store"
	"editSessionServer/backend/internal/ws"
)

type EditSessionConfig struct {
	Running struct {
		Port int `mapstructure:"port"`
	} `mapstructure:"running"`
	Mysql struct {
		DSN string `mapstructure:"dsn"`
	} `mapstructure:"mysql"`
	Redis struct {
		Addr     string `mapstructure:"addr"`
		Password string `mapstructure:"password"`
	} `mapstructure:"redis"`
	Kafka struct {
		Brokers []string `mapstructure:"brokers"`
		Topic   string   `mapstructure:"topic"`
	} `mapstructure:"kafka"`
}

func initConfig() (*EditSessionConfig, error) {
	cfg := &EditSessionConfig{}
	v := viper.New()
	v.SetConfigName("editSessionConfig")
	v.SetConfigType("yaml")
	// 兼容从项目根目录或 backend 目录启动
	v.AddConfigPath("./backend/config")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func main() {
	cfg, err := initConfig()
	if err != nil {
		log.Fatalf("init config failed: %v", err)
	}
	log.Printf("config: %+v", cfg)

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
	})
	if err = rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("Failed to connect to redis: %v", err)
	}
	defer rdb.Close()

	db, err := sql.Open("mysql", cfg.Mysql.DSN)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// === 初始化 Kafka Producer ===
	kafkaCfg := sarama.NewConfig()
	// SyncProducer 必须开启 Return.Successes
	kafkaCfg.Producer.Return.Successes = true
	kafkaCfg.Producer.RequiredAcks = sarama.WaitForLocal
	producer, err := sarama.NewSyncProducer(cfg.Kafka.Brokers, kafkaCfg)
	if err != nil {
		log.Fatalf("Failed to connect kafka: %v", err)
	}
	defer producer.Close()

	kafkaSem := session.NewSemaphoreControl()
	submitSem := session.NewSemaphoreControl()

	// Kafka 本地队列 + worker 重试发送
	dispatcher := session.NewKafkaDispatcher(
		producer,
		cfg.Kafka.Topic,
		kafkaSem,
		session.KafkaDispatcherOptions{
			QueueSize:   10_000,
			Workers:     4,
			MaxRetry:    3,
			BaseBackoff: 50 * time.Millisecond,
			MaxBackoff:  1 * time.Second,
		},
	)

	presenceCache := cache.NewRedisPresence(rdb)
	hub := ws.NewHub(presenceCache)
	capStore := store.NewCapabilityStore(db)

	// 会话注册表：Hub 作为 Notifier 注入，每次变更都向宿主帧广播全量快照
	registry := session.NewRegistry(capStore, hub, dispatcher)
	manager := ws.NewManager(hub, registry)
	editHandlers := handlers.NewEditHandlers(registry, submitSem, presenceCache)

	r := gin.New()
	// 中间件
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	r.Use(cors.New(cors.Config{
		// 允许任意来源（包含 file:// 场景的 Origin: null）
		AllowOriginFunc:  func(origin string) bool { return true },
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "docid", "docId", "doc_id"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	// 宿主帧同步通道
	sessionGroup := r.Group("/session")
	sessionGroup.Use(middleware.AuthMiddleware())
	sessionGroup.GET("/ws", manager.WebSocketConnect)

	// 文档侧协作者入口
	v1 := r.Group("/v1")
	v1.Use(middleware.AuthMiddleware())
	edits := v1.Group("/edits")
	edits.GET("/:docId", editHandlers.GetEdits)
	edits.POST("/:docId/text", editHandlers.AddTextEdit)
	edits.POST("/:docId/equation", editHandlers.AddEquationEdit)
	edits.DELETE("/:docId", editHandlers.ClearAllEdits)
	edits.DELETE("/:docId/:editId", editHandlers.RemoveEdit)
	edits.POST("/:docId/mode", editHandlers.SetEditingMode)
	edits.GET("/:docId/watchers", editHandlers.GetWatchers)
	edits.GET("/:docId/equation-editor", editHandlers.GetEditingEquation)
	edits.POST("/:docId/equation-editor/open", editHandlers.OpenEquationEditor)
	edits.POST("/:docId/equation-editor/close", editHandlers.CloseEquationEditor)
	edits.POST("/:docId/equation-editor/save", editHandlers.SaveEquationEdit)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"message": "ok",
		})
	})

	port := cfg.Running.Port
	_ = r.Run(fmt.Sprintf(":%d", port))
}
