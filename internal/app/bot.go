package app

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"plantit/internal/eventbus"
	"plantit/internal/garden"
	"plantit/internal/reminder"
	"plantit/internal/transport"
	"plantit/internal/transport/telegram/router"
)

const defaultDueWindow = 24 * time.Hour

func (a *App) registerBot(r *router.Router) {
	r.Handle(router.Command{Name: "due", Usage: "[hours]", Description: "care due soon", Timeout: 10 * time.Second, Handle: a.cmdDue})
	r.Handle(router.Command{Name: "plants", Description: "list plants", Timeout: 10 * time.Second, Handle: a.cmdPlants})
	r.Handle(router.Command{Name: "water", Usage: "<plant>", Description: "log a watering", Timeout: 10 * time.Second, Handle: a.cmdWater})
	r.Handle(router.Command{Name: "digest", Description: "send the overdue digest now", Timeout: 15 * time.Second, Handle: a.cmdDigest})
	r.OnCallback(a.onAction)
}

func (a *App) cmdDue(ctx context.Context, req *router.Request) error {
	window := defaultDueWindow
	if len(req.Args) > 0 {
		h, err := strconv.Atoi(req.Args[0])
		if err != nil || h < 0 {
			return fmt.Errorf("hours must be a non-negative number")
		}
		window = time.Duration(h) * time.Hour
	}
	due, err := a.core.Repo.Upcoming(ctx, window)
	if err != nil {
		return err
	}
	if len(due) == 0 {
		return req.Reply(ctx, fmt.Sprintf("Nothing due in the next %dh.", int(window.Hours())))
	}
	names, err := a.plantNames(ctx)
	if err != nil {
		return err
	}
	return req.Reply(ctx, reminder.DueList(a.core.Calendar, due, names))
}

func (a *App) cmdPlants(ctx context.Context, req *router.Request) error {
	plants, err := a.core.Repo.Plants(ctx, "")
	if err != nil {
		return err
	}
	if len(plants) == 0 {
		return req.Reply(ctx, "No plants yet.")
	}
	lines := make([]string, 0, len(plants))
	for _, p := range plants {
		line := "• " + p.Name
		if p.Species != "" {
			line += " (" + p.Species + ")"
		}
		lines = append(lines, line)
	}
	return req.Reply(ctx, strings.Join(lines, "\n"))
}

func (a *App) cmdWater(ctx context.Context, req *router.Request) error {
	if len(req.Args) == 0 {
		return req.Reply(ctx, "Usage: /water <plant>")
	}
	p, err := a.core.Repo.ResolvePlant(ctx, strings.Join(req.Args, " "))
	if err != nil {
		return err
	}
	if _, err := a.core.Repo.RecordActivity(ctx, p.ID, garden.ActivityWater, ""); err != nil {
		return err
	}
	return req.Reply(ctx, "Watered "+p.Name+".")
}

func (a *App) cmdDigest(ctx context.Context, req *router.Request) error {
	n, err := a.reminders.Digest(ctx)
	if err != nil {
		return err
	}
	if n == 0 {
		return req.Reply(ctx, "Nothing overdue.")
	}
	return nil
}

// onAction turns a reminder button tap into a ReminderAction event. The
// reply answers the tap and replaces the reminder text, which also removes
// its buttons.
func (a *App) onAction(ctx context.Context, req *router.Request) error {
	act, err := reminder.ParseAction(req.Payload)
	if err != nil {
		return err
	}
	cb := req.Update.Callback
	ref := transport.MessageRef{ChatID: cb.ChatID, ThreadID: cb.ThreadID, MessageID: cb.MessageID}
	adapter := req.Adapter
	a.core.Bus.Publish(eventbus.Event{Type: eventbus.ReminderAction, Data: reminder.ActionEvent{
		Action: act,
		Reply: func(ctx context.Context, text string) {
			_ = adapter.AnswerCallback(ctx, cb.ID, text)
			if ref.MessageID != 0 {
				_ = adapter.EditText(ctx, ref, text, nil)
			}
		},
	}})
	return nil
}

func (a *App) plantNames(ctx context.Context) (map[string]string, error) {
	plants, err := a.core.Repo.Plants(ctx, "")
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(plants))
	for _, p := range plants {
		names[p.ID] = p.Name
	}
	return names, nil
}
