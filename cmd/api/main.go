package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/talentdesk/employer-access/backend/internal/account"
	"github.com/talentdesk/employer-access/backend/internal/config"
	"github.com/talentdesk/employer-access/backend/internal/domain"
	"github.com/talentdesk/employer-access/backend/internal/handler"
	"github.com/talentdesk/employer-access/backend/internal/mailer"
	"github.com/talentdesk/employer-access/backend/internal/metrics"
	"github.com/talentdesk/employer-access/backend/internal/otp"
	"github.com/talentdesk/employer-access/backend/internal/repository"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	/**********************************************
	 * 创建 logger
	 **********************************************/
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	/**********************************************
	 * 加载配置
	 **********************************************/
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return
	}

	/**********************************************
	 * 连接数据库
	 **********************************************/
	dbpool, err := sql.Open("pgx", cfg.Database.DSN)
	if err != nil {
		logger.Error("failed to create database pool", "error", err)
		return
	}
	defer dbpool.Close()

	dbpool.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	dbpool.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	dbpool.SetConnMaxIdleTime(time.Duration(cfg.Database.MaxIdleTime) * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Database.ConnectTimeout)*time.Second)
	defer cancel()

	// sql.Open 只是创建连接池对象，需要显式 ping 一下
	if err := dbpool.PingContext(ctx); err != nil {
		logger.Error("failed to connect to database", "error", err)
		return
	}

	/**********************************************
	 * 创建 repository 和 service
	 **********************************************/
	repo := repository.NewRepository(cfg, dbpool)
	accounts := account.NewService(repo,
		account.WithPasswordLength(cfg.NewAccount.PasswordLength),
		account.WithProtectedEmail(cfg.InitialAdmin.Email),
	)

	/**********************************************
	 * 确保数据库中存在初始管理员
	 **********************************************/
	admin, err := accounts.Bootstrap(ctx, domain.Identity{
		FirstName: cfg.InitialAdmin.FirstName,
		LastName:  cfg.InitialAdmin.LastName,
		Email:     cfg.InitialAdmin.Email,
		Password:  cfg.InitialAdmin.Password,
		Confirm:   cfg.InitialAdmin.Password,
	})
	if err != nil {
		logger.Error("failed to bootstrap initial administrator", "error", err)
		return
	}
	logger.Info("initial administrator ready", "id", admin.ID, "email", admin.Email)

	/**********************************************
	 * 连接 rabbitmq
	 **********************************************/
	conn, err := amqp.Dial(cfg.RabbitMQ.DSN)
	if err != nil {
		logger.Error("failed to connect to rabbitmq", "error", err)
		return
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		logger.Error("failed to open channel", "error", err)
		return
	}
	defer ch.Close()

	if _, err := mailer.DeclareQueue(ch, cfg.RabbitMQ.Queue); err != nil {
		logger.Error("failed to declare queue", "error", err)
		return
	}

	publisher := mailer.NewAMQPPublisher(ch, cfg.RabbitMQ.Queue, time.Duration(cfg.RabbitMQ.PublishTimeout)*time.Second)

	/**********************************************
	 * 连接 redis
	 **********************************************/
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       0,
	})
	defer rdb.Close()

	redisCtx, redisCancel := context.WithTimeout(context.Background(), time.Duration(cfg.Redis.ConnectTimeout)*time.Second)
	defer redisCancel()
	if err := rdb.Ping(redisCtx).Err(); err != nil {
		logger.Error("failed to connect to redis", "error", err)
		return
	}

	otpStore := otp.NewStore(rdb,
		time.Duration(cfg.OTP.Expiration)*time.Second,
		time.Duration(cfg.Redis.OperationTimeout)*time.Second,
		cfg.OTP.MaxAttempts,
	)

	/**********************************************
	 * 注册指标
	 **********************************************/
	if err := metrics.Register(nil); err != nil {
		logger.Error("failed to register metrics", "error", err)
		return
	}

	/**********************************************
	 * 创建 handler
	 **********************************************/
	handler, err := handler.NewHandler(cfg, accounts, publisher, otpStore)
	if err != nil {
		logger.Error("failed to create handler", "error", err)
		return
	}
	handler.RegisterRoutes()

	/**********************************************
	 * 启动 HTTP 服务器
	 **********************************************/
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      handler.Mux,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("starting server", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", slog.String("error", err.Error()))
			return
		}
	}()

	<-quit
	logger.Info("shutting down server")

	ctx, cancel = context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown failed", slog.String("error", err.Error()))
	}
	logger.Info("server stopped")
}
