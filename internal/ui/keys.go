package ui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Quit          key.Binding
	Submit        key.Binding
	Newline       key.Binding
	NewChat       key.Binding
	PrevSession   key.Binding
	NextSession   key.Binding
	ToggleSidebar key.Binding
	Suggest       key.Binding
	ScrollUp      key.Binding
	ScrollDown    key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Quit:          key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
		Submit:        key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "send")),
		Newline:       key.NewBinding(key.WithKeys("alt+enter", "ctrl+j"), key.WithHelp("alt+enter", "newline")),
		NewChat:       key.NewBinding(key.WithKeys("ctrl+n"), key.WithHelp("ctrl+n", "new chat")),
		PrevSession:   key.NewBinding(key.WithKeys("ctrl+up"), key.WithHelp("ctrl+↑", "prev chat")),
		NextSession:   key.NewBinding(key.WithKeys("ctrl+down"), key.WithHelp("ctrl+↓", "next chat")),
		ToggleSidebar: key.NewBinding(key.WithKeys("ctrl+b"), key.WithHelp("ctrl+b", "sidebar")),
		Suggest:       key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "suggestion")),
		ScrollUp:      key.NewBinding(key.WithKeys("pgup"), key.WithHelp("pgup", "scroll up")),
		ScrollDown:    key.NewBinding(key.WithKeys("pgdown"), key.WithHelp("pgdn", "scroll down")),
	}
}

func (k keyMap) footer() []key.Binding {
	return []key.Binding{k.Submit, k.Newline, k.NewChat, k.PrevSession, k.NextSession, k.ToggleSidebar, k.Quit}
}
