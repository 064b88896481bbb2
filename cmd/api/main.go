package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sysu-ecnc-dev/sla-scheduler/backend/internal/bootstrap"
	"github.com/sysu-ecnc-dev/sla-scheduler/backend/internal/config"
	"github.com/sysu-ecnc-dev/sla-scheduler/backend/internal/domain"
	"github.com/sysu-ecnc-dev/sla-scheduler/backend/internal/handler"
	"github.com/sysu-ecnc-dev/sla-scheduler/backend/internal/metrics"
	"github.com/sysu-ecnc-dev/sla-scheduler/backend/internal/repository"
	"golang.org/x/crypto/bcrypt"
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
		logger.Error("无法加载配置文件", "error", err)
		return
	}

	/**********************************************
	 * 连接数据库
	 **********************************************/
	dbpool, err := bootstrap.OpenDB(cfg)
	if err != nil {
		logger.Error("数据库不可用", "error", err)
		return
	}
	defer dbpool.Close()

	/**********************************************
	 * 创建 repository
	 **********************************************/
	repo := repository.NewRepository(cfg, dbpool)

	/**********************************************
	 * 确保数据库中存在初始排课员
	 **********************************************/
	passwordHash, err := bcrypt.GenerateFromPassword([]byte(cfg.InitialAdmin.Password), bcrypt.DefaultCost)
	if err != nil {
		logger.Error("无法生成初始排课员密码哈希", "error", err)
		return
	}
	initialAdmin := &domain.User{
		Username:     cfg.InitialAdmin.Username,
		PasswordHash: string(passwordHash),
		FullName:     cfg.InitialAdmin.FullName,
		Email:        cfg.InitialAdmin.Email,
		Role:         domain.RoleOperator,
	}
	if err := repo.CreateUser(initialAdmin); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			// 数据库中已经存在初始排课员，不处理
		default:
			logger.Error("无法创建初始排课员", "error", err)
			return
		}
	}

	/**********************************************
	 * 加载排课目录
	 **********************************************/
	catalog, err := bootstrap.LoadCatalog(repo)
	if err != nil {
		logger.Error("排课目录不可用", "error", err)
		return
	}

	/**********************************************
	 * 连接 rabbitmq 与 redis
	 **********************************************/
	// api 只投递排课任务，邮件由 worker 投递，两个队列都在这里声明
	rabbit, err := bootstrap.DialRabbitMQ(cfg, cfg.RabbitMQ.SchedulingQueue, cfg.RabbitMQ.EmailQueue)
	if err != nil {
		logger.Error("rabbitmq 不可用", "error", err)
		return
	}
	defer rabbit.Close()

	rdb, err := bootstrap.NewRedis(cfg)
	if err != nil {
		logger.Error("redis 不可用", "error", err)
		return
	}
	defer rdb.Close()

	/**********************************************
	 * 创建 handler
	 **********************************************/
	handler, err := handler.NewHandler(cfg, repo, catalog, rabbit.Channel, rdb, metrics.New())
	if err != nil {
		logger.Error("无法创建 handler", "error", err)
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("正在启动服务器...", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("无法启动服务器", slog.String("error", err.Error()))
			return
		}
	}()

	<-ctx.Done()
	logger.Info("正在关闭服务器...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("关闭服务器失败", slog.String("error", err.Error()))
	}
	logger.Info("服务器已成功关闭")
}
