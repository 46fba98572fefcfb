package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"taskbot/internal/reminder"
	"taskbot/internal/todo"
	"taskbot/internal/transport/telegram/router"
	logx "taskbot/pkg/logx"
)

const (
	msgStart           = "Hi! I'm TaskManagerBot. Use /add, /list, /delete and /remind to manage your tasks."
	msgAddUsage        = "Please give a priority (low, medium, high) and the task text after /add."
	msgBadPriority     = "Priority must be one of: low, medium, high."
	msgNoTasks         = "You have no tasks."
	msgDeleteUsage     = "Please give the task number after /delete."
	msgBadTaskNumber   = "Invalid task number."
	msgRemindUsage     = "Usage: /remind HH:MM reminder text"
	msgBadTime         = "Invalid time format. Use HH:MM."
	msgNoReminders     = "You have no reminders."
	msgReminderFailure = "Could not schedule the reminder, try again later."
)

func (b *Bot) cmdStart(ctx context.Context, req *router.Request) error {
	return req.Reply(ctx, msgStart)
}

func (b *Bot) cmdAdd(ctx context.Context, req *router.Request) error {
	args := router.SplitN(req.Text, 2)
	if len(args) < 2 {
		return req.Reply(ctx, msgAddUsage)
	}
	p, err := todo.ParsePriority(args[0])
	if err != nil {
		return req.Reply(ctx, msgBadPriority)
	}
	b.tasks.Add(req.FromID, p, args[1])
	return req.Reply(ctx, fmt.Sprintf("Task '%s' with priority '%s' added.", args[1], p))
}

func (b *Bot) cmdList(ctx context.Context, req *router.Request) error {
	tasks := b.tasks.List(req.FromID)
	if len(tasks) == 0 {
		return req.Reply(ctx, msgNoTasks)
	}
	return req.Reply(ctx, "Your tasks:\n"+FormatTasks(tasks))
}

// FormatTasks renders one "<n>. [<priority>] <text>" line per task.
func FormatTasks(tasks []todo.Task) string {
	var sb strings.Builder
	for i, t := range tasks {
		if i > 0 {
			sb.WriteByte('\n')
		}
		fmt.Fprintf(&sb, "%d. [%s] %s", i+1, t.Priority, t.Text)
	}
	return sb.String()
}

func (b *Bot) cmdDelete(ctx context.Context, req *router.Request) error {
	pos, ok := parsePosition(req.Text)
	if !ok {
		return req.Reply(ctx, msgDeleteUsage)
	}
	t, err := b.tasks.DeleteAt(req.FromID, pos)
	if errors.Is(err, todo.ErrOutOfRange) {
		return req.Reply(ctx, msgBadTaskNumber)
	}
	if err != nil {
		return err
	}
	return req.Reply(ctx, fmt.Sprintf("Task '%s' with priority '%s' deleted.", t.Text, t.Priority))
}

// parsePosition accepts a plain decimal number only.
func parsePosition(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		// too large for int; no user has that many tasks
		return 0, true
	}
	return n, true
}

func (b *Bot) cmdRemind(ctx context.Context, req *router.Request) error {
	args := router.SplitN(req.Text, 2)
	if len(args) < 2 {
		return req.Reply(ctx, msgRemindUsage)
	}
	at, err := reminder.ParseTimeOfDay(args[0])
	if err != nil {
		return req.Reply(ctx, msgBadTime)
	}
	// collapse runs of whitespace so "a  b" and "a b" are one reminder
	text := strings.Join(strings.Fields(args[1]), " ")

	key := reminder.Reminder{UserID: req.FromID, At: at, Text: text}.Key()
	if err := b.sched.Install(key, at, req.FromID, text); err != nil {
		req.Logger.Warn("reminder install failed", logx.String("at", at.String()), logx.Err(err))
		_ = req.Reply(ctx, msgReminderFailure)
		return err
	}
	b.reminders.Add(req.FromID, at, text)
	return req.Reply(ctx, fmt.Sprintf("Reminder '%s' set for %s.", text, at))
}

func (b *Bot) cmdReminders(ctx context.Context, req *router.Request) error {
	list := b.reminders.List(req.FromID)
	if len(list) == 0 {
		return req.Reply(ctx, msgNoReminders)
	}
	var sb strings.Builder
	sb.WriteString("Your reminders:")
	for _, r := range list {
		fmt.Fprintf(&sb, "\n%s %s", r.At, r.Text)
		if next, ok := b.sched.NextFire(r.Key()); ok {
			fmt.Fprintf(&sb, " (next: %s)", next.Format(time.DateTime+" MST"))
		}
	}
	return req.Reply(ctx, sb.String())
}
