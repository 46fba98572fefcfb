package router

import (
	"context"
	"time"

	kit "taskbot/internal/transport"
	logx "taskbot/pkg/logx"
)

type HandlerFunc func(ctx context.Context, req *Request) error

// Command is one slash command. Name is the bare word after "/".
type Command struct {
	Name        string
	Aliases     []string
	Description string
	Usage       string
	// Hidden commands are routed but left out of help and the menu.
	Hidden  bool
	Timeout time.Duration // optional per-command override
	Handle  HandlerFunc
}

type Request struct {
	Update       kit.Update
	Chat         kit.ChatTarget
	FromID       int64
	FromUsername string
	Command      string
	// Args is the text after the command split on whitespace.
	Args []string
	// Text is the text after the command with surrounding space trimmed and
	// inner spacing preserved.
	Text  string
	ReqID string

	Adapter kit.Adapter
	Logger  logx.Logger
}

// Reply sends text back to the chat the command came from.
func (r *Request) Reply(ctx context.Context, text string) error {
	_, err := r.Adapter.SendText(ctx, r.Chat, text, &kit.SendOptions{DisablePreview: true})
	return err
}

// ReplyHTML is Reply with HTML parse mode; callers escape user text.
func (r *Request) ReplyHTML(ctx context.Context, text string) error {
	_, err := r.Adapter.SendText(ctx, r.Chat, text, &kit.SendOptions{DisablePreview: true, ParseMode: "HTML"})
	return err
}

// Options tune the dispatcher. Zero values pick defaults.
type Options struct {
	Workers        int           // default max(2, NumCPU)
	QueueSize      int           // default 256
	DefaultTimeout time.Duration // default 15s
	UnknownReply   string
	BusyReply      string
}
