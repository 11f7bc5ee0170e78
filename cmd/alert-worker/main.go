package main

import (
	"context"
	"errors"
	"fmt"
	"net/smtp"
	"os"
	"strings"
	"time"

	appamqp "expensebook/internal/amqp"
	"expensebook/internal/cli"
	"expensebook/internal/config"
	"expensebook/internal/core"
	"expensebook/internal/log"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentAlerts)
	cfg := cli.LoadAndValidateConfig(logger)

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the alert worker")
		os.Exit(1)
	}

	client, err := appamqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to connect to AMQP", log.FieldError, err)
		os.Exit(1)
	}
	defer client.Close()

	notify := buildNotifier(cfg, logger)

	ctx, done := cli.GracefulShutdown(logger, 10*time.Second, nil)

	logger.Info("Alert worker started",
		"queue", cfg.AMQPQueue,
		"smtp_enabled", cfg.SMTPAddr != "")

	err = client.ConsumeBudgetAlerts(ctx, func(msg *appamqp.BudgetAlertMessage) error {
		logger.Info("Budget alert received",
			log.FieldUserID, msg.UserID,
			log.FieldMonth, msg.Month,
			"spent_cents", msg.SpentCents,
			"target_cents", msg.TargetCents)
		return notify(msg)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Consumer stopped", log.FieldError, err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Alert worker stopped gracefully")
}

// buildNotifier returns the alert delivery function. Without SMTP
// configuration alerts are only logged, which still drains the queue.
func buildNotifier(cfg *config.Config, logger *log.Logger) func(*appamqp.BudgetAlertMessage) error {
	if cfg.SMTPAddr == "" {
		return func(msg *appamqp.BudgetAlertMessage) error {
			logger.Warn("Budget exceeded",
				"username", msg.Username,
				log.FieldMonth, msg.Month,
				"spent_cents", msg.SpentCents,
				"target_cents", msg.TargetCents)
			return nil
		}
	}

	return func(msg *appamqp.BudgetAlertMessage) error {
		if msg.Email == "" {
			logger.Warn("Alert has no recipient address, skipping send",
				log.FieldUserID, msg.UserID,
				log.FieldMonth, msg.Month)
			return nil
		}
		return sendMail(cfg.SMTPAddr, cfg.SMTPFrom, msg)
	}
}

func sendMail(addr, from string, msg *appamqp.BudgetAlertMessage) error {
	spent := core.Money{Cents: msg.SpentCents}
	target := core.Money{Cents: msg.TargetCents}

	var body strings.Builder
	fmt.Fprintf(&body, "From: %s\r\n", from)
	fmt.Fprintf(&body, "To: %s\r\n", msg.Email)
	fmt.Fprintf(&body, "Subject: Budget alert for %s\r\n", msg.Month)
	body.WriteString("\r\n")
	fmt.Fprintf(&body, "Hi %s,\r\n\r\n", msg.Username)
	fmt.Fprintf(&body, "Your spending for %s reached %.2f, above your target of %.2f.\r\n",
		msg.Month, spent.Float(), target.Float())

	if err := smtp.SendMail(addr, nil, from, []string{msg.Email}, []byte(body.String())); err != nil {
		return fmt.Errorf("send alert mail: %w", err)
	}
	return nil
}
