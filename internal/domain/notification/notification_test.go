package notification

import "testing"

func TestRecipientChannelPrecedence(t *testing.T) {
	tests := []struct {
		name string
		r    Recipient
		want Channel
		ok   bool
	}{
		{"all set", Recipient{Email: "lead@example.com", SlackChannel: "#eng", WebhookURL: "https://hooks.example.com"}, ChannelEmail, true},
		{"chat over webhook", Recipient{SlackChannel: "#eng", WebhookURL: "https://hooks.example.com"}, ChannelChat, true},
		{"webhook only", Recipient{WebhookURL: "https://hooks.example.com"}, ChannelWebhook, true},
		{"user id only", Recipient{UserID: "u1"}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.r.Channel()
			if got != tt.want || ok != tt.ok {
				t.Fatalf("Channel() = %q, %v; want %q, %v", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestCanAttempt(t *testing.T) {
	tests := []struct {
		status   Status
		attempts int
		want     bool
	}{
		{StatusPending, 0, true},
		{StatusFailed, 2, true},
		{StatusFailed, 3, false},
		{StatusDelivered, 1, false},
		{StatusSent, 0, false},
	}
	for _, tt := range tests {
		n := &Notification{Status: tt.status, Attempts: tt.attempts, MaxAttempts: 3}
		if got := n.CanAttempt(); got != tt.want {
			t.Errorf("CanAttempt(%s, %d) = %v, want %v", tt.status, tt.attempts, got, tt.want)
		}
	}
}
