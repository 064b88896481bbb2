package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sysu-ecnc-dev/sla-scheduler/backend/internal/bootstrap"
	"github.com/sysu-ecnc-dev/sla-scheduler/backend/internal/config"
	"github.com/sysu-ecnc-dev/sla-scheduler/backend/internal/mailer"
	"github.com/sysu-ecnc-dev/sla-scheduler/backend/internal/mq"
	"github.com/wneessen/go-mail"
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
	 * 创建邮件客户端
	 **********************************************/
	client, err := mail.NewClient(cfg.Email.SMTP.Host,
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithSSL(),
		mail.WithPort(cfg.Email.SMTP.Port),
		mail.WithUsername(cfg.Email.SMTP.Username),
		mail.WithPassword(cfg.Email.SMTP.Password),
	)
	if err != nil {
		logger.Error("无法创建邮件客户端", slog.String("error", err.Error()))
		return
	}
	defer client.Close()

	// 验证邮件客户端是否连接成功
	clientDialCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Email.SMTP.DialTimeout)*time.Second)
	defer cancel()
	if err := client.DialWithContext(clientDialCtx); err != nil {
		logger.Error("无法连接到邮件服务器", slog.String("error", err.Error()))
		return
	}

	/**********************************************
	 * 连接 RabbitMQ
	 **********************************************/
	rabbit, err := bootstrap.DialRabbitMQ(cfg, cfg.RabbitMQ.EmailQueue)
	if err != nil {
		logger.Error("rabbitmq 不可用", slog.String("error", err.Error()))
		return
	}
	defer rabbit.Close()

	msgs, err := mq.Consume(rabbit.Channel, cfg.RabbitMQ.EmailQueue, 10)
	if err != nil {
		logger.Error("无法消费消息", slog.String("error", err.Error()))
		return
	}

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
				deliver(ctx, logger, client, cfg.Email.SMTP.Username, msg)
			}
		}
	}()

	logger.Info("等待消息...（按 CTRL+C 退出）")
	<-ctx.Done()

	slog.Info("正在关闭 mail worker...")
	<-done
	slog.Info("mail worker 已成功关闭")
}

// deliver 发送一封邮件并根据结果确认消息，发送失败的消息重新入队
func deliver(ctx context.Context, logger *slog.Logger, client mailer.Sender, from string, msg amqp.Delivery) {
	log := logger.With(slog.String("messageID", msg.MessageId))

	content, retry, err := mailer.Deliver(ctx, client, from, msg.Body)
	if err != nil {
		log.Error("邮件处理失败", slog.String("error", err.Error()), slog.Bool("requeue", retry))
		_ = msg.Nack(false, retry)
		return
	}

	_ = msg.Ack(false)
	log.Info("邮件发送成功", slog.String("to", content.To))
}
