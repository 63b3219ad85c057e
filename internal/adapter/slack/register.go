package slack

import (
	"time"

	"github.com/Strob0t/devteam/internal/domain/notification"
	"github.com/Strob0t/devteam/internal/port/notifier"
)

func init() {
	notifier.Register(notification.ChannelChat, func(config map[string]string) (notifier.Sender, error) {
		timeout, _ := time.ParseDuration(config["timeout"])
		return NewSender(config["webhook_url"], timeout), nil
	})
}
