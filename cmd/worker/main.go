package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sysu-ecnc-dev/sla-scheduler/backend/internal/archive"
	"github.com/sysu-ecnc-dev/sla-scheduler/backend/internal/bootstrap"
	"github.com/sysu-ecnc-dev/sla-scheduler/backend/internal/config"
	"github.com/sysu-ecnc-dev/sla-scheduler/backend/internal/metrics"
	"github.com/sysu-ecnc-dev/sla-scheduler/backend/internal/mq"
	"github.com/sysu-ecnc-dev/sla-scheduler/backend/internal/repository"
	"github.com/sysu-ecnc-dev/sla-scheduler/backend/internal/runner"
	"github.com/sysu-ecnc-dev/sla-scheduler/backend/internal/worker"
)

func main() {
	/**********************************************
	 * 创建 logger
	 **********************************************/
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	/**********************************************
	 * 读取配置文件
	 **********************************************/
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("无法读取配置文件", slog.String("error", err.Error()))
		return
	}

	/**********************************************
	 * 连接数据库并加载排课目录
	 **********************************************/
	dbpool, err := bootstrap.OpenDB(cfg)
	if err != nil {
		logger.Error("数据库不可用", "error", err)
		return
	}
	defer dbpool.Close()

	repo := repository.NewRepository(cfg, dbpool)

	catalog, err := bootstrap.LoadCatalog(repo)
	if err != nil {
		logger.Error("排课目录不可用", "error", err)
		return
	}

	/**********************************************
	 * 创建归档客户端
	 **********************************************/
	var archiver worker.Archiver
	a, err := archive.New(context.Background(), cfg)
	switch {
	case errors.Is(err, archive.ErrArchiveDisabled):
		logger.Info("没有配置归档存储桶，报告不会被归档")
	case err != nil:
		logger.Error("无法创建归档客户端", slog.String("error", err.Error()))
		return
	default:
		archiver = a
	}

	/**********************************************
	 * 连接 RabbitMQ
	 **********************************************/
	rabbit, err := bootstrap.DialRabbitMQ(cfg, cfg.RabbitMQ.SchedulingQueue, cfg.RabbitMQ.EmailQueue)
	if err != nil {
		logger.Error("rabbitmq 不可用", "error", err)
		return
	}
	defer rabbit.Close()
	ch := rabbit.Channel

	// 一次只执行一个排课任务，遗传算法本身已经占满 CPU
	msgs, err := mq.Consume(ch, cfg.RabbitMQ.SchedulingQueue, 1)
	if err != nil {
		logger.Error("无法消费消息", slog.String("error", err.Error()))
		return
	}

	w := worker.New(
		runner.New(cfg, repo, catalog, metrics.New()),
		archiver,
		mq.NewPublisher(ch, time.Duration(cfg.RabbitMQ.PublishTimeout)*time.Second),
		cfg.RabbitMQ.EmailQueue,
		cfg.Email.NotifyTo,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					logger.Error("消息通道已关闭")
					stop()
					return
				}
				// 正在执行的排课不随退出信号取消
				settle(logger, msg, w.Handle(context.Background(), msg.Body))
			}
		}
	}()

	logger.Info("等待排课任务...（按 CTRL+C 退出）")
	<-ctx.Done()

	slog.Info("正在关闭 scheduling worker...")
	<-done
	slog.Info("scheduling worker 已成功关闭")
}

// settle 按处理结果确认、重新入队或丢弃消息
func settle(logger *slog.Logger, msg amqp.Delivery, decision worker.Decision) {
	var err error
	switch decision {
	case worker.Ack:
		err = msg.Ack(false)
	case worker.Requeue:
		err = msg.Nack(false, true)
	default:
		err = msg.Nack(false, false)
	}

	log := logger.With(slog.String("messageID", msg.MessageId), slog.String("decision", decision.String()))
	if err != nil {
		log.Error("无法确认排课任务消息", slog.String("error", err.Error()))
		return
	}
	log.Info("排课任务处理完毕")
}
