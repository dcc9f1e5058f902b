package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/rubiojr/quill/pkg/models"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86")).
			Background(lipgloss.Color("235")).
			Padding(0, 1).
			Margin(0, 0, 1, 0)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("214"))

	postStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1).
			Margin(0, 0, 1, 0)

	metaStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)

	selfStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("32")).
			Bold(true)

	peerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("33")).
			Bold(true)

	pendingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("244")).
			Italic(true)

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("203")).
			Bold(true)

	urlStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("33")).
			Underline(true)
)

var titleCaser = cases.Title(language.Und)

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	local := t.Local()
	if time.Since(t) < 24*time.Hour {
		return local.Format("15:04")
	}
	return local.Format("2006-01-02 15:04")
}

func renderMessage(m models.Message, myID string, pending bool) string {
	name := m.Sender.Name
	if name == "" {
		name = m.SenderID
	}
	style := peerStyle
	if m.SenderID == myID || m.Sender.ID == myID {
		style = selfStyle
	}

	content := m.Content
	switch m.Type {
	case models.MessageImage:
		content = "[image] " + urlStyle.Render(m.Content)
	case models.MessageSystem:
		return metaStyle.Render("* " + m.Content)
	}

	line := fmt.Sprintf("%s %s %s", metaStyle.Render(formatTime(m.CreatedAt)), style.Render(name+":"), content)
	if pending {
		line += " " + pendingStyle.Render("(sending)")
	}
	return line
}

func renderPost(p models.Post, full bool) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(p.Title))
	b.WriteString("\n")
	b.WriteString(metaStyle.Render(fmt.Sprintf("%s · %s · %s", p.ID, p.Author.Name, formatTime(p.CreatedAt))))
	if len(p.Tags) > 0 {
		b.WriteString("\n")
		b.WriteString(metaStyle.Render("#" + strings.Join(p.Tags, " #")))
	}
	if p.CoverImage != "" {
		b.WriteString("\n")
		b.WriteString(urlStyle.Render(p.CoverImage))
	}
	content := p.Content
	if r := []rune(content); !full && len(r) > 240 {
		content = string(r[:240]) + "…"
	}
	if content != "" {
		b.WriteString("\n\n")
		b.WriteString(content)
	}
	return postStyle.Render(b.String())
}

func renderComment(c models.Comment, pending bool) string {
	line := fmt.Sprintf("%s %s %s", metaStyle.Render(formatTime(c.CreatedAt)), peerStyle.Render(c.Author.Name+":"), c.Content)
	if pending {
		line += " " + pendingStyle.Render("(sending)")
	}
	return line
}

func renderConversation(c models.Conversation, myID string) string {
	title := c.Title(myID)
	kind := titleCaser.String(strings.ToLower(string(c.Type)))
	line := fmt.Sprintf("%s  %s %s", metaStyle.Render(c.ID), headerStyle.Render(title), metaStyle.Render("("+kind+")"))
	if c.UnreadCount > 0 {
		line += " " + warnStyle.Render(fmt.Sprintf("%d", c.UnreadCount))
	}
	if c.LastMessage != nil {
		line += "\n    " + metaStyle.Render(c.LastMessage.Content)
	}
	return line
}

func renderUser(u models.User) string {
	line := headerStyle.Render(u.DisplayName())
	if u.Username != "" {
		line += " " + metaStyle.Render("@"+u.Username)
	}
	return line + " " + metaStyle.Render(u.ID)
}
