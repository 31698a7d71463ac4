package router

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"plantit/internal/runtime/supervisor"
	"plantit/internal/transport"
	logx "plantit/pkg/logx"
)

// Request is one routed update.
type Request struct {
	Update  transport.Update
	Chat    transport.ChatTarget
	FromID  int64
	Command string
	Args    []string
	// Payload is the callback data for button taps.
	Payload string
	Adapter transport.Adapter
	Logger  logx.Logger
}

// Reply sends text to the chat the request came from.
func (r *Request) Reply(ctx context.Context, text string) error {
	_, err := r.Adapter.SendText(ctx, r.Chat, text, &transport.SendOptions{DisablePreview: true})
	return err
}

type Command struct {
	Name        string
	Usage       string
	Description string
	Timeout     time.Duration
	Handle      HandlerFunc
}

// Router turns inbound updates into command and callback handler calls.
// Updates from chats other than the allowed one are ignored (0 allows all).
type Router struct {
	log       logx.Logger
	adapter   transport.Adapter
	allowChat int64
	workers   int

	mu         sync.RWMutex
	cmds       map[string]Command
	onCallback HandlerFunc
}

func New(adapter transport.Adapter, log logx.Logger, allowChat int64) *Router {
	if log.IsZero() {
		log = logx.Nop()
	}
	r := &Router{
		log:       log.With(logx.Category(logx.CatNotifications), logx.String("comp", "router")),
		adapter:   adapter,
		allowChat: allowChat,
		workers:   2,
		cmds:      map[string]Command{},
	}
	r.Handle(Command{Name: "help", Description: "list commands", Handle: r.help})
	return r
}

func (r *Router) Handle(c Command) {
	name := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(c.Name), "/"))
	if name == "" || c.Handle == nil {
		return
	}
	c.Name = name
	r.mu.Lock()
	r.cmds[name] = c
	r.mu.Unlock()
}

// OnCallback sets the handler for button taps. The handler answers the
// callback itself; the router only answers when the handler fails.
func (r *Router) OnCallback(h HandlerFunc) {
	r.mu.Lock()
	r.onCallback = h
	r.mu.Unlock()
}

// Run dispatches updates on a small worker pool until ctx ends or updates
// is closed.
func (r *Router) Run(ctx context.Context, updates <-chan transport.Update) error {
	sup := supervisor.New(ctx, supervisor.WithLogger(r.log))
	jobs := make(chan transport.Update, 64)
	for i := range r.workers {
		sup.GoRestart(fmt.Sprintf("router.worker.%d", i), func(c context.Context) error {
			for {
				select {
				case <-c.Done():
					return nil
				case up, ok := <-jobs:
					if !ok {
						return nil
					}
					r.Dispatch(c, up)
				}
			}
		}, 200*time.Millisecond, 5*time.Second)
	}
	r.log.Info("router started", logx.Int("workers", r.workers))

	defer func() {
		close(jobs)
		wctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = sup.Wait(wctx)
		r.log.Info("router stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			select {
			case jobs <- up:
			default:
				r.log.Warn("router busy, update dropped", logx.String("kind", string(up.Kind)))
			}
		}
	}
}

// Dispatch routes one update synchronously.
func (r *Router) Dispatch(ctx context.Context, up transport.Update) {
	switch {
	case up.Kind == transport.UpdateMessage && up.Message != nil:
		r.routeMessage(ctx, up)
	case up.Kind == transport.UpdateCallback && up.Callback != nil:
		r.routeCallback(ctx, up)
	}
}

func (r *Router) allowed(chatID int64) bool {
	return r.allowChat == 0 || chatID == r.allowChat
}

func (r *Router) routeMessage(ctx context.Context, up transport.Update) {
	msg := up.Message
	if !r.allowed(msg.ChatID) {
		return
	}
	parts := strings.Fields(strings.TrimSpace(msg.Text))
	if len(parts) == 0 || !strings.HasPrefix(parts[0], "/") {
		return
	}
	word := strings.ToLower(strings.TrimPrefix(parts[0], "/"))
	if i := strings.IndexByte(word, '@'); i >= 0 {
		word = word[:i]
	}

	req := &Request{
		Update:  up,
		Chat:    transport.ChatTarget{ChatID: msg.ChatID, ThreadID: msg.ThreadID},
		FromID:  msg.FromID,
		Command: word,
		Args:    parts[1:],
		Adapter: r.adapter,
		Logger:  r.log,
	}

	r.mu.RLock()
	cmd, ok := r.cmds[word]
	r.mu.RUnlock()
	if !ok {
		_ = req.Reply(ctx, "Unknown command. Try /help")
		return
	}

	h := Chain(cmd.Handle, Recover(r.log), RequestLog(r.log), Timeout(cmd.Timeout))
	if err := h(ctx, req); err != nil {
		_ = req.Reply(ctx, "Error: "+err.Error())
	}
}

func (r *Router) routeCallback(ctx context.Context, up transport.Update) {
	cb := up.Callback
	if !r.allowed(cb.ChatID) {
		_ = r.adapter.AnswerCallback(ctx, cb.ID, "Not allowed here")
		return
	}
	r.mu.RLock()
	h := r.onCallback
	r.mu.RUnlock()
	if h == nil {
		_ = r.adapter.AnswerCallback(ctx, cb.ID, "")
		return
	}
	req := &Request{
		Update:  up,
		Chat:    transport.ChatTarget{ChatID: cb.ChatID, ThreadID: cb.ThreadID},
		FromID:  cb.FromID,
		Command: "callback",
		Payload: cb.Data,
		Adapter: r.adapter,
		Logger:  r.log,
	}
	if err := Chain(h, Recover(r.log), RequestLog(r.log), Timeout(15*time.Second))(ctx, req); err != nil {
		_ = r.adapter.AnswerCallback(ctx, cb.ID, "Failed")
	}
}

func (r *Router) help(ctx context.Context, req *Request) error {
	r.mu.RLock()
	cmds := make([]Command, 0, len(r.cmds))
	for _, c := range r.cmds {
		cmds = append(cmds, c)
	}
	r.mu.RUnlock()
	sort.Slice(cmds, func(i, j int) bool { return cmds[i].Name < cmds[j].Name })

	lines := make([]string, 0, len(cmds))
	for _, c := range cmds {
		line := "/" + c.Name
		if c.Usage != "" {
			line += " " + c.Usage
		}
		if c.Description != "" {
			line += " - " + c.Description
		}
		lines = append(lines, line)
	}
	return req.Reply(ctx, strings.Join(lines, "\n"))
}
