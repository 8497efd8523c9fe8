package ui

import (
	"fmt"
	"strings"

	"UnfilteredChat/internal/attachment"
	"UnfilteredChat/internal/session"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"
)

const (
	appTitle     = "GEMINI UNFILTERED"
	badgeText    = "RAW MODE"
	workingText  = "Working..."
	emptySidebar = "No recent chats"
	heroTitle    = "Ready to work?"
	heroSubtitle = "Quit wasting time and ask."
)

// View implements tea.Model.
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	w := m.mainWidth()
	main := lipgloss.JoinVertical(lipgloss.Left,
		m.headerView(w),
		m.viewport.View(),
		m.attachmentView(w),
		m.statusView(w),
		composerStyle.Width(w-2).Render(m.input.View()),
		m.footerView(w),
	)

	if !m.showSidebar {
		return main
	}
	sidebar := sidebarStyle.Height(m.height - 2).Render(m.sidebarView())
	return lipgloss.JoinHorizontal(lipgloss.Top, sidebar, " ", main)
}

func (m Model) sidebarView() string {
	var b strings.Builder
	b.WriteString(sidebarHeaderStyle.Render("Recent"))
	b.WriteString("\n")

	store := m.bot.Store()
	sessions := store.Sessions()
	if len(sessions) == 0 {
		b.WriteString(mutedStyle.Render(emptySidebar))
		return b.String()
	}

	current := store.CurrentID()
	inner := sidebarWidth - 4
	for _, s := range sessions {
		title := truncate(s.Title, inner)
		if s.ID == current {
			b.WriteString(sessionActiveStyle.Width(inner).Render(title))
		} else {
			b.WriteString(sessionStyle.Width(inner).Render(title))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) headerView(w int) string {
	title := titleStyle.Render(appTitle)
	badge := badgeStyle.Render(badgeText)
	gap := w - lipgloss.Width(title) - lipgloss.Width(badge)
	if gap < 1 {
		gap = 1
	}
	return lipgloss.JoinHorizontal(lipgloss.Center, title, strings.Repeat(" ", gap), badge)
}

// renderConversation turns the current session into viewport content.
func (m Model) renderConversation() string {
	sess, ok := m.bot.Store().Current()
	if !ok || len(sess.Messages) == 0 {
		return m.welcomeView()
	}

	var b strings.Builder
	for _, msg := range sess.Messages {
		switch msg.Role {
		case session.RoleUser:
			b.WriteString(m.userMessageView(msg))
		case session.RoleModel:
			b.WriteString(m.modelMessageView(msg, sess.Streaming == msg.ID))
		}
		b.WriteString("\n\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m Model) userMessageView(msg session.Message) string {
	var lines []string
	if n := len(msg.Images); n > 0 {
		lines = append(lines, attachmentStyle.Render(fmt.Sprintf("[%s]", pluralImages(n))))
	}
	if msg.Content != "" {
		lines = append(lines, msg.Content)
	}
	body := userStyle.MaxWidth(m.viewport.Width).Render(strings.Join(lines, "\n"))

	// right-aligned bubble
	return lipgloss.PlaceHorizontal(m.viewport.Width, lipgloss.Right, body)
}

func (m Model) modelMessageView(msg session.Message, streaming bool) string {
	label := modelLabelStyle.Render("Gemini")
	if msg.Content == "" {
		if streaming {
			return label + "\n" + m.spinner.View() + " " + mutedStyle.Render(workingText)
		}
		return label
	}
	return label + "\n" + m.renderMarkdown(msg.Content, !streaming)
}

// renderMarkdown renders content with glamour. Sealed replies are cached
// per wrap width.
func (m Model) renderMarkdown(content string, sealed bool) string {
	if m.renderer == nil {
		return content
	}
	if sealed {
		if out, ok := m.renders.Get(m.renderWrap, content); ok {
			return out
		}
	}
	out, err := m.renderer.Render(content)
	if err != nil {
		return content
	}
	out = strings.Trim(out, "\n")
	if sealed {
		m.renders.Put(m.renderWrap, content, out)
	}
	return out
}

func (m Model) welcomeView() string {
	w := m.viewport.Width
	hero := lipgloss.JoinVertical(lipgloss.Center,
		heroStyle.Render(heroTitle),
		mutedStyle.Render(heroSubtitle),
	)

	cards := make([]string, len(suggestions))
	for i, s := range suggestions {
		style := cardStyle
		if i == m.suggestion {
			style = cardSelectedStyle
		}
		cards[i] = style.Render(s)
	}

	// two per row, single column on narrow terminals
	var rows []string
	perRow := 2
	if w < 2*lipgloss.Width(cards[0])+2 {
		perRow = 1
	}
	for i := 0; i < len(cards); i += perRow {
		end := min(i+perRow, len(cards))
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, cards[i:end]...))
	}

	grid := lipgloss.JoinVertical(lipgloss.Center, rows...)
	body := lipgloss.JoinVertical(lipgloss.Center, hero, "", grid, "", mutedStyle.Render("tab to pick a suggestion"))
	return lipgloss.Place(w, m.viewport.Height, lipgloss.Center, lipgloss.Center, body)
}

func (m Model) attachmentView(w int) string {
	pending := m.bot.Attachments()
	if len(pending) == 0 {
		return ""
	}
	parts := make([]string, len(pending))
	for i, a := range pending {
		mime, _ := attachment.Split(a)
		parts[i] = fmt.Sprintf("%d:%s", i+1, mime)
	}
	line := fmt.Sprintf("Attached %s  %s  (/detach N to remove)", pluralImages(len(pending)), strings.Join(parts, " "))
	return attachmentStyle.MaxWidth(w).Render(line)
}

func (m Model) statusView(w int) string {
	if m.status == "" {
		return ""
	}
	if m.statusErr {
		return errorStyle.MaxWidth(w).Render(m.status)
	}
	return mutedStyle.MaxWidth(w).Render(m.status)
}

func (m Model) footerView(w int) string {
	bindings := m.keys.footer()
	parts := make([]string, 0, len(bindings))
	for _, b := range bindings {
		parts = append(parts, helpEntry(b))
	}
	return mutedStyle.MaxWidth(w).Render(strings.Join(parts, " • "))
}

func helpEntry(b key.Binding) string {
	h := b.Help()
	return h.Key + " " + h.Desc
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
