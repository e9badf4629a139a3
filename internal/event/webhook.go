package event

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"GolfTour/internal/config"
	"GolfTour/internal/utils/httpclient"

	"github.com/sirupsen/logrus"
)

// WebhookDispatcher 把领域事件以JSON POST到配置的订阅方地址。
// 推送在请求内同步完成（核心不引入后台任务），失败只记日志。
type WebhookDispatcher struct {
	urls   []string
	client *http.Client
	logger *logrus.Logger
}

// NewWebhookDispatcher 创建Webhook推送器，urls为空时返回nil（总线跳过）
func NewWebhookDispatcher(cfg *config.WebhookConfig, logger *logrus.Logger) *WebhookDispatcher {
	if len(cfg.URLs) == 0 {
		return nil
	}
	return &WebhookDispatcher{
		urls:   cfg.URLs,
		client: httpclient.NewHTTPClient(cfg, logger),
		logger: logger,
	}
}

// Notify 逐个订阅方推送事件信封，任一失败汇总为错误返回（由总线记日志）
func (d *WebhookDispatcher) Notify(ctx context.Context, ev Event) error {
	body, err := json.Marshal(NewEnvelope(ev))
	if err != nil {
		return fmt.Errorf("序列化事件失败: %w", err)
	}
	var lastErr error
	for _, u := range d.urls {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
		if err != nil {
			lastErr = err
			continue
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := d.client.Do(req)
		if err != nil {
			d.logger.WithError(err).WithField("url", u).Warn("Webhook推送失败")
			lastErr = err
			continue
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
		if resp.StatusCode >= 300 {
			lastErr = fmt.Errorf("webhook %s 返回状态码 %d", u, resp.StatusCode)
			d.logger.WithField("url", u).WithField("status", resp.StatusCode).Warn("Webhook订阅方返回非2xx")
		}
	}
	return lastErr
}

// AuditSubscriber 审计订阅方：把每个领域事件落一条结构化日志
type AuditSubscriber struct {
	logger *logrus.Logger
}

// NewAuditSubscriber 创建审计订阅方
func NewAuditSubscriber(logger *logrus.Logger) *AuditSubscriber {
	return &AuditSubscriber{logger: logger}
}

// Notify 记录事件审计日志
func (a *AuditSubscriber) Notify(_ context.Context, ev Event) error {
	a.logger.WithFields(logrus.Fields{
		"event_type": ev.EventType(),
		"event":      ev,
	}).Info("领域事件")
	return nil
}
