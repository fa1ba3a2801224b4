package tui

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/user/ideascan/internal/config"
	"github.com/user/ideascan/internal/db"
	"github.com/user/ideascan/internal/extractor"
)

const (
	searchLimit = 100
	runsLimit   = 50
)

type view int

const (
	ideasView view = iota
	runsView
)

type model struct {
	cfg          *config.Config
	store        *db.Store
	searchInput  textinput.Model
	list         list.Model
	ideas        []db.Idea
	runs         []db.RunLog
	floor        int64
	view         view
	assessedOnly bool
	width        int
	height       int
	searching    bool
	err          error
}

type ideaItem struct {
	idea db.Idea
}

func (i ideaItem) Title() string {
	prefix := fmt.Sprintf("[%.2f]", i.idea.RelevanceScore)
	if i.idea.LLMProfitScore != nil {
		prefix += fmt.Sprintf(" $%.0f", *i.idea.LLMProfitScore)
	}
	return prefix + " " + i.idea.Title
}

func (i ideaItem) Description() string {
	desc := i.idea.ProblemSummary
	if r := []rune(desc); len(r) > 80 {
		desc = extractor.Truncate(desc, 80) + "..."
	}
	return "r/" + i.idea.Subreddit + "  " + desc
}

func (i ideaItem) FilterValue() string {
	return i.idea.Title + " " + i.idea.ProblemSummary + " " + strings.Join(i.idea.ReasonTags, " ")
}

type runItem struct {
	run db.RunLog
}

func (r runItem) Title() string {
	started := time.Unix(r.run.StartedUTC, 0).UTC().Format("2006-01-02 15:04")
	return fmt.Sprintf("#%d %s %s %s", r.run.ID, r.run.Period, statusIcon(r.run.Status), started)
}

func (r runItem) Description() string {
	if r.run.Status != db.RunSuccess {
		return r.run.Message
	}
	return fmt.Sprintf("posts=%d extracted=%d window=%d notified=%t",
		r.run.FetchedPosts, r.run.ExtractedIdeas, r.run.WindowIdeas, r.run.Notified)
}

func (r runItem) FilterValue() string {
	return r.run.Period + " " + string(r.run.Status) + " " + r.run.Message
}

func statusIcon(s db.RunStatus) string {
	switch s {
	case db.RunSuccess:
		return "[ok]"
	case db.RunFailed:
		return "[failed]"
	case db.RunSkippedSameDay:
		return "[skipped]"
	case db.RunStarted:
		return "[running]"
	default:
		return "[?]"
	}
}

func initialModel(cfg *config.Config) model {
	ti := textinput.New()
	ti.Placeholder = "Search ideas..."
	ti.CharLimit = 256
	ti.Width = 50

	delegate := list.NewDefaultDelegate()
	l := list.New([]list.Item{}, delegate, 0, 0)
	l.Title = "Ideas"
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(false)
	l.SetShowHelp(true)

	return model{
		cfg:         cfg,
		searchInput: ti,
		list:        l,
		floor:       time.Now().Unix() - cfg.LookbackSeconds(),
	}
}

type initMsg struct {
	store *db.Store
	ideas []db.Idea
	runs  []db.RunLog
	err   error
}

type searchMsg struct {
	ideas []db.Idea
	err   error
}

func (m model) Init() tea.Cmd {
	return m.initStore
}

func (m model) initStore() tea.Msg {
	store, err := db.NewStore(m.cfg.DataDir)
	if err != nil {
		return initMsg{err: err}
	}

	ideas, err := store.IdeasSince(m.floor)
	if err != nil {
		return initMsg{store: store, err: err}
	}
	runs, err := store.ListRunLogs(runsLimit)
	if err != nil {
		return initMsg{store: store, err: err}
	}
	return initMsg{store: store, ideas: ideas, runs: runs}
}

func (m model) doSearch(query string) tea.Cmd {
	return func() tea.Msg {
		if m.store == nil {
			return searchMsg{err: fmt.Errorf("store not initialized")}
		}
		ideas, err := m.store.SearchIdeas(query, m.floor, searchLimit)
		return searchMsg{ideas: ideas, err: err}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if !m.searching || msg.String() == "ctrl+c" {
				return m, tea.Quit
			}
		case "esc":
			if m.searching {
				m.searching = false
				m.searchInput.Blur()
				return m, nil
			}
		case "/":
			if !m.searching && m.view == ideasView {
				m.searching = true
				m.searchInput.Focus()
				return m, textinput.Blink
			}
		case "enter":
			if m.searching {
				m.searching = false
				m.searchInput.Blur()
				return m, m.doSearch(m.searchInput.Value())
			}
		case "tab":
			if !m.searching {
				if m.view == ideasView {
					m.view = runsView
				} else {
					m.view = ideasView
				}
				m.refreshItems()
				return m, nil
			}
		case "a":
			if !m.searching {
				m.assessedOnly = !m.assessedOnly
				m.refreshItems()
				return m, nil
			}
		case "j", "down":
			if !m.searching {
				m.list.CursorDown()
				return m, nil
			}
		case "k", "up":
			if !m.searching {
				m.list.CursorUp()
				return m, nil
			}
		case "g":
			if !m.searching {
				m.list.Select(0)
				return m, nil
			}
		case "G":
			if !m.searching {
				items := m.list.Items()
				if len(items) > 0 {
					m.list.Select(len(items) - 1)
				}
				return m, nil
			}
		case "o":
			if !m.searching {
				if item, ok := m.list.SelectedItem().(ideaItem); ok {
					openBrowser(item.idea.Permalink)
				}
				return m, nil
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.list.SetSize(msg.Width, msg.Height-6)
		m.searchInput.Width = msg.Width - 20

	case initMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.store = msg.store
		m.ideas = msg.ideas
		m.runs = msg.runs
		m.refreshItems()
		return m, nil

	case searchMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.ideas = msg.ideas
		m.refreshItems()
		return m, nil
	}

	if m.searching {
		prev := m.searchInput.Value()
		var cmd tea.Cmd
		m.searchInput, cmd = m.searchInput.Update(msg)
		cmds = append(cmds, cmd)

		if m.searchInput.Value() != prev {
			cmds = append(cmds, m.doSearch(m.searchInput.Value()))
		}
	} else {
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// refreshItems rebuilds the list for the current view and filters.
func (m *model) refreshItems() {
	if m.view == runsView {
		m.list.Title = "Runs"
		items := make([]list.Item, 0, len(m.runs))
		for _, r := range m.runs {
			items = append(items, runItem{run: r})
		}
		m.list.SetItems(items)
		return
	}

	m.list.Title = "Ideas"
	if m.assessedOnly {
		m.list.Title = "Ideas (LLM assessed)"
	}
	items := make([]list.Item, 0, len(m.ideas))
	for _, i := range m.ideas {
		if m.assessedOnly && !i.HasTag("llm_assessed") {
			continue
		}
		items = append(items, ideaItem{idea: i})
	}
	m.list.SetItems(items)
}

func (m model) View() string {
	if m.err != nil {
		return fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err)
	}

	var b strings.Builder

	searchStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		Padding(0, 1)

	activeTab := lipgloss.NewStyle().
		Foreground(lipgloss.Color("86")).
		Bold(true)

	inactiveTab := lipgloss.NewStyle().
		Foreground(lipgloss.Color("240"))

	tabs := []string{}
	for _, t := range []struct {
		v     view
		label string
	}{
		{ideasView, fmt.Sprintf("Ideas (%d)", len(m.ideas))},
		{runsView, fmt.Sprintf("Runs (%d)", len(m.runs))},
	} {
		if m.view == t.v {
			tabs = append(tabs, activeTab.Render(t.label))
		} else {
			tabs = append(tabs, inactiveTab.Render(t.label))
		}
	}
	if m.assessedOnly {
		tabs = append(tabs, activeTab.Render("[LLM]"))
	}

	searchBox := searchStyle.Render(m.searchInput.View())
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, searchBox, "  ", strings.Join(tabs, " ")))
	b.WriteString("\n\n")

	b.WriteString(m.list.View())

	helpStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("240")).
		MarginTop(1)

	help := "[j/k]nav [g/G]top/end [/]search [o]pen [tab]ideas/runs [a]ssessed only [q]uit"
	b.WriteString(helpStyle.Render(help))

	return b.String()
}

func openBrowser(url string) {
	if url == "" {
		return
	}
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", url)
	}
	if cmd != nil {
		cmd.Start()
	}
}

// Run starts the TUI application
func Run(cfg *config.Config) error {
	m, err := tea.NewProgram(initialModel(cfg), tea.WithAltScreen()).Run()
	if fm, ok := m.(model); ok && fm.store != nil {
		fm.store.Close()
	}
	return err
}
