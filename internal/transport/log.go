package transport

import (
	"context"
	"strings"
	"sync/atomic"

	logx "plantit/pkg/logx"
)

// LogAdapter "delivers" messages by logging them. It has no inbound side,
// so buttons are rendered as text only.
type LogAdapter struct {
	log  logx.Logger
	next atomic.Int64
}

func NewLogAdapter(log logx.Logger) *LogAdapter {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &LogAdapter{log: log.With(logx.Category(logx.CatNotifications), logx.String("transport", "log"))}
}

func (a *LogAdapter) Start(context.Context, chan<- Update) error { return nil }
func (a *LogAdapter) Stop(context.Context) error                 { return nil }

func (a *LogAdapter) SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) (MessageRef, error) {
	if err := ctx.Err(); err != nil {
		return MessageRef{}, err
	}
	ref := MessageRef{ChatID: to.ChatID, ThreadID: to.ThreadID, MessageID: int(a.next.Add(1))}
	fields := []logx.Field{logx.Int("message_id", ref.MessageID), logx.String("text", text)}
	if opt != nil && len(opt.Buttons) > 0 {
		fields = append(fields, logx.String("actions", buttonLabels(opt.Buttons)))
	}
	a.log.Info("reminder", fields...)
	return ref, nil
}

func (a *LogAdapter) EditText(ctx context.Context, ref MessageRef, text string, _ *SendOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a.log.Info("reminder updated", logx.Int("message_id", ref.MessageID), logx.String("text", text))
	return nil
}

func (a *LogAdapter) AnswerCallback(context.Context, string, string) error { return nil }

func buttonLabels(rows [][]Button) string {
	var labels []string
	for _, row := range rows {
		for _, b := range row {
			labels = append(labels, b.Text)
		}
	}
	return strings.Join(labels, ", ")
}
