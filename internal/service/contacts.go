package service

import (
	"github.com/Strob0t/devteam/internal/config"
	"github.com/Strob0t/devteam/internal/domain/approval"
	"github.com/Strob0t/devteam/internal/domain/notification"
)

// Contacts is the directory used to address approvers. Default holds the
// recipient per approver type; Escalation holds the contact an escalated
// request is handed to, keyed by the tier it escalates to.
type Contacts struct {
	Default    map[approval.ApproverType]approval.Approver
	Escalation map[approval.ApproverType]approval.Approver
}

// ContactsFromConfig builds the directory from the contacts sections.
func ContactsFromConfig(cfg *config.Config) Contacts {
	convert := func(in map[string]config.Contact) map[approval.ApproverType]approval.Approver {
		out := make(map[approval.ApproverType]approval.Approver, len(in))
		for role, c := range in {
			out[approval.ApproverType(role)] = approval.Approver{
				UserID:       c.UserID,
				Email:        c.Email,
				Role:         c.Role,
				SlackChannel: c.SlackChannel,
				WebhookURL:   c.WebhookURL,
			}
		}
		return out
	}
	return Contacts{
		Default:    convert(cfg.Contacts),
		Escalation: convert(cfg.EscalationContacts),
	}
}

// recipientFor resolves who to notify for a request: the explicit approver
// when one is set, else the directory entry for the approver type.
func (c Contacts) recipientFor(t approval.ApproverType, explicit *approval.Approver) notification.Recipient {
	if explicit != nil && !explicit.IsZero() {
		return toRecipient(*explicit)
	}
	if a, ok := c.Default[t]; ok {
		return toRecipient(a)
	}
	return notification.Recipient{}
}

func toRecipient(a approval.Approver) notification.Recipient {
	return notification.Recipient{
		UserID:       a.UserID,
		Email:        a.Email,
		SlackChannel: a.SlackChannel,
		WebhookURL:   a.WebhookURL,
	}
}
