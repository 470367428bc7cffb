package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/talentdesk/employer-access/backend/internal/config"
	"github.com/talentdesk/employer-access/backend/internal/mailer"
	"github.com/wneessen/go-mail"
)

func main() {
	/**********************************************
	 * 创建 logger
	 **********************************************/
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	/**********************************************
	 * 读取配置
	 **********************************************/
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("failed to load config", slog.String("error", err.Error()))
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
		logger.Error("failed to create mail client", slog.String("error", err.Error()))
		return
	}
	defer client.Close()

	// 启动时先确认能连上邮件服务器
	dialCtx, dialCancel := context.WithTimeout(context.Background(), time.Duration(cfg.Email.SMTP.DialTimeout)*time.Second)
	defer dialCancel()
	if err := client.DialWithContext(dialCtx); err != nil {
		logger.Error("failed to connect to smtp server", slog.String("error", err.Error()))
		return
	}

	/**********************************************
	 * 连接 RabbitMQ
	 **********************************************/
	conn, err := amqp.Dial(cfg.RabbitMQ.DSN)
	if err != nil {
		logger.Error("failed to connect to rabbitmq", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		logger.Error("failed to open channel", slog.String("error", err.Error()))
		return
	}
	defer ch.Close()

	q, err := mailer.DeclareQueue(ch, cfg.RabbitMQ.Queue)
	if err != nil {
		logger.Error("failed to declare queue", slog.String("error", err.Error()))
		return
	}

	// 监听 CTRL+C
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	msgs, err := ch.Consume(
		q.Name, // 队列
		"",     // 消费者标识，由 RabbitMQ 自动分配
		false,  // 手动确认
		false,  // 是否独占队列
		false,  // RabbitMQ 不支持 no-local
		false,  // 等待 RabbitMQ 响应
		nil,    // 额外参数
	)
	if err != nil {
		logger.Error("failed to consume queue", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	wg := sync.WaitGroup{}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					logger.Error("delivery channel closed")
					return
				}
				handleDelivery(logger, client, cfg.Email.SMTP.Username, msg)
			}
		}
	}()

	logger.Info("waiting for messages (press CTRL+C to exit)", "queue", q.Name)
	<-sigChan

	logger.Info("shutting down mail worker")
	cancel()
	wg.Wait()
	logger.Info("mail worker stopped")
}

// 无法解析的消息直接丢弃，发送失败的消息重新入队
func handleDelivery(logger *slog.Logger, client *mail.Client, from string, msg amqp.Delivery) {
	m, err := mailer.Compose(from, msg.Body)
	if err != nil {
		logger.Error("dropping undeliverable message", slog.String("error", err.Error()))
		_ = msg.Nack(false, false)
		return
	}

	if err := client.DialAndSend(m); err != nil {
		logger.Error("failed to send mail", slog.String("error", err.Error()))
		_ = msg.Nack(false, true)
		return
	}

	_ = msg.Ack(false)
	logger.Info("mail sent", "size", len(msg.Body))
}
