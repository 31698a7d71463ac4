package reminder

import (
	"context"

	"plantit/internal/transport"
)

// Notifier is the subset of notifier.Service used for delivery.
type Notifier interface {
	Notify(ctx context.Context, n transport.Notification) error
}

const (
	priorityReminder = 5
	priorityDigest   = 7
)

// NotifierDeliverer turns reminders into notifications for one chat target.
// Schedule reminders carry Complete and Snooze buttons; the digest has none.
type NotifierDeliverer struct {
	Notifier Notifier
	Channel  string
	Target   transport.ChatTarget
}

func (d NotifierDeliverer) Deliver(ctx context.Context, r Reminder) error {
	return d.Notifier.Notify(ctx, Notification(r, d.Channel, d.Target))
}

// Notification renders r as a chat message.
func Notification(r Reminder, channel string, to transport.ChatTarget) transport.Notification {
	n := transport.Notification{
		Channel:  channel,
		Priority: priorityReminder,
		Target:   to,
		Text:     r.Title + "\n" + r.Body,
		Options:  &transport.SendOptions{DisablePreview: true},
	}
	if r.ScheduleID == "" {
		n.Priority = priorityDigest
		return n
	}
	n.Options.Buttons = [][]transport.Button{{
		{Text: "Complete", Data: Action{Kind: ActionComplete, ScheduleID: r.ScheduleID}.String()},
		{Text: "Snooze", Data: Action{Kind: ActionSnooze, ScheduleID: r.ScheduleID}.String()},
	}}
	return n
}
