package email

import (
	"strconv"

	"github.com/Strob0t/devteam/internal/domain/notification"
	"github.com/Strob0t/devteam/internal/port/notifier"
)

func init() {
	notifier.Register(notification.ChannelEmail, func(config map[string]string) (notifier.Sender, error) {
		port := 587
		if v := config["port"]; v != "" {
			p, err := strconv.Atoi(v)
			if err != nil {
				return nil, err
			}
			port = p
		}
		return NewSender(SMTPConfig{
			Host:     config["host"],
			Port:     port,
			From:     config["from"],
			Password: config["password"],
		}), nil
	})
}
