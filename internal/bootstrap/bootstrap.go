// Package bootstrap 集中了 api 与 worker 启动时共用的外部依赖初始化
package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/sysu-ecnc-dev/sla-scheduler/backend/internal/config"
	"github.com/sysu-ecnc-dev/sla-scheduler/backend/internal/domain"
	"github.com/sysu-ecnc-dev/sla-scheduler/backend/internal/mq"
	"github.com/sysu-ecnc-dev/sla-scheduler/backend/internal/seed"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// OpenDB 创建连接池并确认数据库可以连通
func OpenDB(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open("pgx", cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("无法创建数据库连接池: %w", err)
	}

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxIdleTime(seconds(cfg.Database.MaxIdleTime))

	ctx, cancel := context.WithTimeout(context.Background(), seconds(cfg.Database.ConnectTimeout))
	defer cancel()

	// sql.Open 不会真正建立连接
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("无法连接到数据库: %w", err)
	}
	return db, nil
}

type CatalogSource interface {
	GetLatestCatalog() (*domain.Catalog, error)
}

// LoadCatalog 读取数据库中最新的排课目录，数据库里还没有目录时退回内置目录
func LoadCatalog(src CatalogSource) (*domain.Catalog, error) {
	catalog, err := src.GetLatestCatalog()
	switch {
	case errors.Is(err, sql.ErrNoRows):
		slog.Warn("数据库中没有排课目录，使用内置目录")
		catalog = seed.DefaultCatalog()
	case err != nil:
		return nil, fmt.Errorf("无法加载排课目录: %w", err)
	}

	if err := catalog.Validate(); err != nil {
		return nil, fmt.Errorf("排课目录不合法: %w", err)
	}
	return catalog, nil
}

// RabbitMQ 持有连接与通道，Close 按相反顺序关闭
type RabbitMQ struct {
	Conn    *amqp.Connection
	Channel *amqp.Channel
}

func (r *RabbitMQ) Close() {
	r.Channel.Close()
	r.Conn.Close()
}

// DialRabbitMQ 连接 RabbitMQ 并声明给出的队列
func DialRabbitMQ(cfg *config.Config, queues ...string) (*RabbitMQ, error) {
	conn, err := amqp.Dial(cfg.RabbitMQ.DSN)
	if err != nil {
		return nil, fmt.Errorf("无法连接到 RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("无法创建通道: %w", err)
	}

	if err := mq.DeclareQueues(ch, queues...); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("无法声明队列: %w", err)
	}

	return &RabbitMQ{Conn: conn, Channel: ch}, nil
}

func NewRedis(cfg *config.Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
	})

	ctx, cancel := context.WithTimeout(context.Background(), seconds(cfg.Redis.ConnectTimeout))
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("无法连接到 redis: %w", err)
	}
	return rdb, nil
}
