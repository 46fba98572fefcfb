// Package bot implements the chat commands on top of the task store, the
// reminder registry and the scheduler.
package bot

import (
	"time"

	"taskbot/internal/reminder"
	"taskbot/internal/todo"
	"taskbot/internal/transport/telegram/router"
	logx "taskbot/pkg/logx"
)

// Scheduler is the part of scheduler.Service the commands use.
type Scheduler interface {
	Install(key reminder.Key, at reminder.TimeOfDay, userID int64, text string) error
	NextFire(key reminder.Key) (time.Time, bool)
}

type Bot struct {
	tasks     *todo.Store
	reminders *reminder.Registry
	sched     Scheduler
	log       logx.Logger
}

func New(tasks *todo.Store, reminders *reminder.Registry, sched Scheduler, log logx.Logger) *Bot {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Bot{tasks: tasks, reminders: reminders, sched: sched, log: log}
}

// Commands returns the command set for router.CommandManager.SetRegistry.
func (b *Bot) Commands() []router.Command {
	return []router.Command{
		{
			Name:        "start",
			Description: "Introduction",
			Usage:       "/start",
			Handle:      b.cmdStart,
		},
		{
			Name:        "add",
			Description: "Add a task",
			Usage:       "/add <low|medium|high> <text>",
			Handle:      b.cmdAdd,
		},
		{
			Name:        "list",
			Description: "List your tasks by priority",
			Usage:       "/list",
			Handle:      b.cmdList,
		},
		{
			Name:        "delete",
			Aliases:     []string{"del"},
			Description: "Delete a task by its number in /list",
			Usage:       "/delete <n>",
			Handle:      b.cmdDelete,
		},
		{
			Name:        "remind",
			Description: "Set a daily reminder",
			Usage:       "/remind HH:MM <text>",
			Handle:      b.cmdRemind,
		},
		{
			Name:        "reminders",
			Description: "List your daily reminders",
			Usage:       "/reminders",
			Handle:      b.cmdReminders,
		},
	}
}
