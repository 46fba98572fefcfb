package router

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	kit "taskbot/internal/transport"
	logx "taskbot/pkg/logx"
)

type sent struct {
	to   kit.ChatTarget
	text string
	opt  *kit.SendOptions
}

type fakeAdapter struct {
	mu   sync.Mutex
	sent []sent
	menu []kit.BotCommand
	ch   chan sent
}

func newFakeAdapter() *fakeAdapter { return &fakeAdapter{ch: make(chan sent, 16)} }

func (a *fakeAdapter) Start(context.Context, chan<- kit.Update) error { return nil }
func (a *fakeAdapter) Stop(context.Context) error                     { return nil }

func (a *fakeAdapter) SendText(_ context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	s := sent{to: to, text: text, opt: opt}
	a.mu.Lock()
	a.sent = append(a.sent, s)
	a.mu.Unlock()
	select {
	case a.ch <- s:
	default:
	}
	return kit.MessageRef{ChatID: to.ChatID}, nil
}

func (a *fakeAdapter) UpdateMenuCommands(_ context.Context, cmds []kit.BotCommand) error {
	a.mu.Lock()
	a.menu = cmds
	a.mu.Unlock()
	return nil
}

func (a *fakeAdapter) next(t *testing.T) sent {
	t.Helper()
	select {
	case s := <-a.ch:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a reply")
		return sent{}
	}
}

func msgUpdate(from int64, text string) kit.Update {
	return kit.Update{Kind: kit.UpdateMessage, Message: &kit.Message{ChatID: from, FromID: from, Text: text}}
}

func startDispatcher(t *testing.T, m *CommandManager) chan kit.Update {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	updates := make(chan kit.Update, 8)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = m.DispatchLoop(ctx, updates)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return updates
}

func TestParseCommandLine(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in         string
		name, rest string
		ok         bool
	}{
		{"/add high buy milk", "add", "high buy milk", true},
		{"  /List  ", "list", "", true},
		{"/remind@task_bot 09:30   stretch  now", "remind", "09:30   stretch  now", true},
		{"hello", "", "", false},
		{"/", "", "", false},
		{"/@bot x", "", "", false},
	}
	for _, tc := range cases {
		name, rest, ok := parseCommandLine(tc.in)
		if name != tc.name || rest != tc.rest || ok != tc.ok {
			t.Fatalf("parseCommandLine(%q) = %q, %q, %v", tc.in, name, rest, ok)
		}
	}
}

func TestSplitN(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in   string
		n    int
		want []string
	}{
		{"high buy  milk ", 2, []string{"high", "buy  milk"}},
		{"  09:30 stretch", 2, []string{"09:30", "stretch"}},
		{"only", 2, []string{"only"}},
		{"a b c", 1, []string{"a b c"}},
		{"", 2, nil},
		{"a ", 3, []string{"a"}},
	}
	for _, tc := range cases {
		if got := SplitN(tc.in, tc.n); !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("SplitN(%q, %d) = %q, want %q", tc.in, tc.n, got, tc.want)
		}
	}
}

func TestSanitizeTelegramCommand(t *testing.T) {
	t.Parallel()
	cases := map[string]string{
		"List":         "list",
		"my-tasks":     "my_tasks",
		"a  b":         "a_b",
		"__x__":        "x",
		"émoji!":       "moji",
		strings.Repeat("a", 40): strings.Repeat("a", 32),
	}
	for in, want := range cases {
		if got := sanitizeTelegramCommand(in); got != want {
			t.Fatalf("sanitize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDispatchRoutesCommandsAndAliases(t *testing.T) {
	t.Parallel()
	a := newFakeAdapter()
	m := NewCommandManager(logx.Nop(), a, Options{Workers: 1})

	var (
		mu  sync.Mutex
		got []*Request
	)
	m.SetRegistry([]Command{{
		Name:    "add",
		Aliases: []string{"new"},
		Handle: func(ctx context.Context, req *Request) error {
			mu.Lock()
			got = append(got, req)
			mu.Unlock()
			return req.Reply(ctx, "ok")
		},
	}})
	updates := startDispatcher(t, m)

	updates <- msgUpdate(7, "/add high  buy milk")
	if s := a.next(t); s.text != "ok" || s.to.ChatID != 7 {
		t.Fatalf("reply = %+v", s)
	}
	updates <- msgUpdate(8, "/NEW@bot low x")
	a.next(t)

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 2 {
		t.Fatalf("handled %d requests, want 2", len(got))
	}
	r := got[0]
	if r.Command != "add" || r.FromID != 7 || r.Text != "high  buy milk" || !reflect.DeepEqual(r.Args, []string{"high", "buy", "milk"}) {
		t.Fatalf("request = %+v", r)
	}
	if r.ReqID == "" || r.ReqID == got[1].ReqID {
		t.Fatalf("request ids %q %q", r.ReqID, got[1].ReqID)
	}
	if got[1].Command != "add" || got[1].FromID != 8 {
		t.Fatalf("alias request = %+v", got[1])
	}
}

func TestDispatchUnknownCommandAndPlainText(t *testing.T) {
	t.Parallel()
	a := newFakeAdapter()
	m := NewCommandManager(logx.Nop(), a, Options{Workers: 1})
	m.SetRegistry(nil)
	updates := startDispatcher(t, m)

	updates <- msgUpdate(1, "just chatting")
	updates <- msgUpdate(1, "/nope")
	if s := a.next(t); s.text != defaultUnknownReply {
		t.Fatalf("reply = %q", s.text)
	}
	a.mu.Lock()
	n := len(a.sent)
	a.mu.Unlock()
	if n != 1 {
		t.Fatalf("sent %d messages, want 1", n)
	}
}

func TestHelpListsVisibleCommands(t *testing.T) {
	t.Parallel()
	a := newFakeAdapter()
	m := NewCommandManager(logx.Nop(), a, Options{})
	noop := func(context.Context, *Request) error { return nil }
	m.SetRegistry([]Command{
		{Name: "list", Description: "Show <your> tasks", Usage: "/list", Handle: noop},
		{Name: "secret", Hidden: true, Handle: noop},
	})

	all := m.helpText("")
	if !strings.Contains(all, "/list - Show &lt;your&gt; tasks") || !strings.Contains(all, "/help") {
		t.Fatalf("help = %q", all)
	}
	if strings.Contains(all, "secret") {
		t.Fatal("hidden command listed")
	}
	if one := m.helpText("/h"); !strings.Contains(one, "<b>/help</b>") || !strings.Contains(one, "Usage: <code>/help [command]</code>") {
		t.Fatalf("topic help = %q", one)
	}

	var names []string
	for _, c := range m.MenuCommands() {
		names = append(names, c.Command)
	}
	if !reflect.DeepEqual(names, []string{"help", "list"}) {
		t.Fatalf("menu = %v", names)
	}
}

func TestSetRegistryLaterWins(t *testing.T) {
	t.Parallel()
	m := NewCommandManager(logx.Nop(), newFakeAdapter(), Options{})
	m.SetRegistry([]Command{
		{Name: "x", Description: "first", Handle: func(context.Context, *Request) error { return nil }},
		{Name: "X", Description: "second", Handle: func(context.Context, *Request) error { return nil }},
		{Name: "no handler"},
	})
	cmds := m.Commands()
	if len(cmds) != 2 || cmds[1].Name != "x" || cmds[1].Description != "second" {
		t.Fatalf("commands = %+v", cmds)
	}
}

func TestMiddlewareRecoversPanicAndAppliesTimeout(t *testing.T) {
	t.Parallel()
	h := Chain(func(ctx context.Context, req *Request) error {
		if _, ok := ctx.Deadline(); !ok {
			return errors.New("no deadline")
		}
		panic("boom")
	}, MWPanicRecover(logx.Nop()), MWRequestLog(logx.Nop()), MWTimeout(time.Second))

	err := h(context.Background(), &Request{Command: "x"})
	if err == nil || !strings.Contains(err.Error(), "panic: boom") {
		t.Fatalf("err = %v", err)
	}
}

func TestTryEnqueueFullQueue(t *testing.T) {
	t.Parallel()
	m := NewCommandManager(logx.Nop(), newFakeAdapter(), Options{QueueSize: 1})
	if !m.tryEnqueue(func() {}) {
		t.Fatal("first enqueue should fit")
	}
	if m.tryEnqueue(func() {}) {
		t.Fatal("second enqueue should report a full queue")
	}
	close(m.jobs)
	if m.tryEnqueue(func() {}) {
		t.Fatal("enqueue on a closed queue must fail")
	}
}
