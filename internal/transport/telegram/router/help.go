package router

import (
	"html"
	"strings"
)

// helpText renders the command list, or the usage of one command when topic
// names a known command or alias.
func (m *CommandManager) helpText(topic string) string {
	m.mu.RLock()
	cmds := m.cmds
	byName := m.byName
	m.mu.RUnlock()

	topic = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(topic), "/"))
	if topic != "" {
		if c, ok := byName[topic]; ok {
			return commandHelp(c)
		}
	}

	var b strings.Builder
	b.WriteString("<b>Commands</b>\n")
	for _, c := range cmds {
		if c.Hidden {
			continue
		}
		b.WriteString("/")
		b.WriteString(html.EscapeString(c.Name))
		if c.Description != "" {
			b.WriteString(" - ")
			b.WriteString(html.EscapeString(c.Description))
		}
		b.WriteString("\n")
	}
	b.WriteString("\nUse /help &lt;command&gt; for details.")
	return b.String()
}

func commandHelp(c Command) string {
	var b strings.Builder
	b.WriteString("<b>/")
	b.WriteString(html.EscapeString(c.Name))
	b.WriteString("</b>")
	if c.Description != "" {
		b.WriteString("\n")
		b.WriteString(html.EscapeString(c.Description))
	}
	if c.Usage != "" {
		b.WriteString("\nUsage: <code>")
		b.WriteString(html.EscapeString(c.Usage))
		b.WriteString("</code>")
	}
	if len(c.Aliases) > 0 {
		b.WriteString("\nAliases: ")
		for i, a := range c.Aliases {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString("/")
			b.WriteString(html.EscapeString(a))
		}
	}
	return b.String()
}
