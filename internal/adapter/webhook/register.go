package webhook

import (
	"time"

	"github.com/Strob0t/devteam/internal/domain/notification"
	"github.com/Strob0t/devteam/internal/port/notifier"
)

func init() {
	notifier.Register(notification.ChannelWebhook, func(config map[string]string) (notifier.Sender, error) {
		timeout, _ := time.ParseDuration(config["timeout"])
		return NewSender(timeout, nil), nil
	})
}
