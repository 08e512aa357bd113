// Package notify отправляет событийные уведомления во внешний мессенджер.
package notify

import (
	"bytes"
	"net/http"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DiscordNotifier отправляет сообщения в Discord webhook
//
// Отправка best-effort: уведомление не должно задерживать торговый
// цикл и не может его сломать. Ошибки доставки логируются и глотаются
type DiscordNotifier struct {
	webhookURL string
	client     *http.Client
	log        *zap.SugaredLogger
}

// NewDiscordNotifier создает notifier для указанного webhook
// Пустой URL дает выключенный notifier: Notify становится no-op
func NewDiscordNotifier(webhookURL string, logger *zap.SugaredLogger) *DiscordNotifier {
	return &DiscordNotifier{
		webhookURL: webhookURL,
		client: &http.Client{
			Timeout: 2 * time.Second,
		},
		log: logger,
	}
}

// Enabled возвращает true, если webhook настроен
func (n *DiscordNotifier) Enabled() bool {
	return n.webhookURL != ""
}

// Notify отправляет текстовое сообщение
func (n *DiscordNotifier) Notify(text string) {
	if !n.Enabled() || text == "" {
		return
	}

	payload, err := json.Marshal(map[string]string{"content": text})
	if err != nil {
		n.log.Warnw("notification payload marshal failed", "error", err)
		return
	}

	resp, err := n.client.Post(n.webhookURL, "application/json", bytes.NewReader(payload))
	if err != nil {
		n.log.Warnw("notification delivery failed", "error", err)
		return
	}
	defer resp.Body.Close()

	// Discord отвечает 204 No Content на успешную доставку
	if resp.StatusCode >= 300 {
		n.log.Warnw("notification rejected",
			"status", resp.StatusCode)
	}
}
