// Package tui provides a terminal UI for watching a running Surge agent:
// the live transcript, the registered tools and the confirmation gate.
package tui

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/voltr/surge/pkg/client"
)

// App is the watcher application. It polls the Surge REST API and
// renders the conversation as it grows.
type App struct {
	app        *tview.Application
	pages      *tview.Pages
	header     *tview.TextView
	footer     *tview.TextView
	transcript *tview.TextView
	toolTable  *tview.Table
	mainFlex   *tview.Flex

	client      *client.Client
	serverAddr  string
	currentView string // "transcript" or "tools"

	// Cached data from the last successful refresh.
	status        *client.Status
	conversation  *client.Conversation
	confirmations *client.Confirmations
	tools         []client.ToolDeclaration
	lastErr       error

	mu sync.Mutex
}

// NewApp creates a watcher connected to the given Surge API server.
func NewApp(serverAddr string) *App {
	a := &App{
		app:         tview.NewApplication(),
		client:      client.New(serverAddr),
		serverAddr:  serverAddr,
		currentView: "transcript",
	}

	a.header = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	a.header.SetBackgroundColor(tcell.ColorDarkBlue)

	a.footer = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	a.footer.SetBackgroundColor(tcell.ColorDarkBlue)

	a.transcript = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWrap(true)
	a.transcript.SetBorderPadding(0, 0, 1, 1)

	a.toolTable = tview.NewTable().
		SetSelectable(true, false).
		SetFixed(1, 0).
		SetSeparator(tview.Borders.Vertical)
	a.toolTable.SetBorderPadding(0, 0, 1, 1)

	a.mainFlex = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(a.header, 1, 0, false).
		AddItem(a.transcript, 0, 1, true).
		AddItem(a.footer, 1, 0, false)

	a.pages = tview.NewPages().
		AddPage("main", a.mainFlex, true, true)

	a.updateHeader()
	a.updateFooter()
	a.setupKeyBindings()

	a.app.SetRoot(a.pages, true).SetFocus(a.transcript)

	return a
}

// Run starts the background refresh goroutine and runs the UI loop.
func (a *App) Run() error {
	a.refresh()
	a.render()

	go func() {
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			a.refresh()
			a.app.QueueUpdateDraw(func() {
				a.render()
			})
		}
	}()

	return a.app.Run()
}

func (a *App) setupKeyBindings() {
	a.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyRune:
			switch event.Rune() {
			case '1':
				a.switchView("transcript")
				return nil
			case '2':
				a.switchView("tools")
				return nil
			case 'q':
				a.app.Stop()
				return nil
			case 'r':
				go func() {
					a.refresh()
					a.app.QueueUpdateDraw(func() {
						a.render()
					})
				}()
				return nil
			case 'G':
				a.transcript.ScrollToEnd()
				return nil
			case 'g':
				a.transcript.ScrollToBeginning()
				return nil
			}
		}
		return event
	})
}

func (a *App) switchView(view string) {
	a.mu.Lock()
	if a.currentView == view {
		a.mu.Unlock()
		return
	}
	a.currentView = view
	a.mu.Unlock()

	a.mainFlex.Clear()
	a.mainFlex.AddItem(a.header, 1, 0, false)
	if view == "tools" {
		a.mainFlex.AddItem(a.toolTable, 0, 1, true)
		a.app.SetFocus(a.toolTable)
	} else {
		a.mainFlex.AddItem(a.transcript, 0, 1, true)
		a.app.SetFocus(a.transcript)
	}
	a.mainFlex.AddItem(a.footer, 1, 0, false)

	a.render()
}

func (a *App) refresh() {
	status, err := a.client.GetStatus()
	if err != nil {
		a.mu.Lock()
		a.lastErr = err
		a.mu.Unlock()
		return
	}
	conv, convErr := a.client.GetConversation()
	confirmations, _ := a.client.GetConfirmations()
	tools, _ := a.client.ListTools()

	a.mu.Lock()
	a.status = status
	a.lastErr = convErr
	if convErr == nil {
		a.conversation = conv
	}
	if confirmations != nil {
		a.confirmations = confirmations
	}
	if tools != nil {
		a.tools = tools
	}
	a.mu.Unlock()
}

func (a *App) render() {
	a.updateHeader()
	a.updateFooter()

	a.mu.Lock()
	view := a.currentView
	a.mu.Unlock()

	if view == "tools" {
		a.renderTools()
	} else {
		a.renderTranscript()
	}
}

func (a *App) renderTranscript() {
	a.mu.Lock()
	conv := a.conversation
	err := a.lastErr
	a.mu.Unlock()

	if err != nil {
		a.transcript.SetText(fmt.Sprintf("[red]Error: %v[-]", err))
		return
	}
	if conv == nil || len(conv.Turns) == 0 {
		a.transcript.SetText("[gray]No conversation yet.[-]")
		return
	}

	var b strings.Builder
	for _, turn := range conv.Turns {
		ts := turn.At.Format("15:04:05")
		switch turn.Role {
		case "human":
			b.WriteString(fmt.Sprintf("[green::b]%s human[-::-]\n%s\n\n", ts, turn.Text))
		case "model":
			b.WriteString(fmt.Sprintf("[blue::b]%s model[-::-]\n%s\n\n", ts, turn.Text))
		case "tool-calls":
			b.WriteString(fmt.Sprintf("[yellow::b]%s tool calls[-::-]\n", ts))
			for _, call := range turn.Calls {
				b.WriteString(fmt.Sprintf("  [yellow]%s[-] %s\n", call.Name, summarizeArgs(call.Args)))
			}
			b.WriteString("\n")
		case "tool-results":
			b.WriteString(fmt.Sprintf("[purple::b]%s tool results[-::-]\n", ts))
			for _, res := range turn.Results {
				if res.Error != nil {
					b.WriteString(fmt.Sprintf("  [red]%s: %s (%s)[-]\n", res.Name, res.Error.Message, res.Error.Kind))
				} else {
					b.WriteString(fmt.Sprintf("  [purple]%s[-] ok\n", res.Name))
				}
			}
			b.WriteString("\n")
		}
	}
	a.transcript.SetText(b.String())
	a.transcript.ScrollToEnd()
}

func (a *App) renderTools() {
	a.mu.Lock()
	tools := a.tools
	a.mu.Unlock()

	a.toolTable.Clear()
	headers := []string{"NAME", "KIND", "DESCRIPTION"}
	for col, h := range headers {
		cell := tview.NewTableCell(h).
			SetTextColor(tcell.ColorWhite).
			SetBackgroundColor(tcell.ColorDarkCyan).
			SetAttributes(tcell.AttrBold).
			SetSelectable(false).
			SetExpansion(1)
		a.toolTable.SetCell(0, col, cell)
	}

	for row, t := range tools {
		kindColor := tcell.ColorGreen
		if t.Kind == "state-changing" {
			kindColor = tcell.ColorRed
		}
		a.toolTable.SetCell(row+1, 0, tview.NewTableCell(t.Name).SetExpansion(1))
		a.toolTable.SetCell(row+1, 1, tview.NewTableCell(t.Kind).SetTextColor(kindColor).SetExpansion(1))
		a.toolTable.SetCell(row+1, 2, tview.NewTableCell(t.Description).SetExpansion(2))
	}
	if a.toolTable.GetRowCount() > 1 {
		a.toolTable.Select(1, 0)
	}
}

func (a *App) updateHeader() {
	a.mu.Lock()
	status := a.status
	view := a.currentView
	a.mu.Unlock()

	state, network, tokens := "unknown", "-", int64(0)
	if status != nil {
		state, network, tokens = status.State, status.Network, status.TokensUsed
	}

	views := "[::b]<1>Transcript[::-]  <2>Tools"
	if view == "tools" {
		views = "<1>Transcript  [::b]<2>Tools[::-]"
	}

	a.header.SetText(fmt.Sprintf(" [::b]Surge[::-] | %s | %s | state: [%s]%s[-] | tokens: %d | %s",
		a.serverAddr, network, stateColorName(state), state, tokens, views))
}

func (a *App) updateFooter() {
	a.mu.Lock()
	confirmations := a.confirmations
	a.mu.Unlock()

	if confirmations != nil && confirmations.Pending != "" {
		// A pending confirmation outranks the key help.
		first := strings.SplitN(confirmations.Pending, "\n", 2)[0]
		a.footer.SetText(fmt.Sprintf(" [red::b]CONFIRMATION PENDING:[-::-] %s (answer on the agent console)", first))
		return
	}
	a.footer.SetText(" [yellow]<1>[white]Transcript  [yellow]<2>[white]Tools  [yellow]<g/G>[white]Top/Bottom  [yellow]<r>[white]Refresh  [yellow]<q>[white]Quit")
}

// summarizeArgs renders call arguments on one line, keys sorted.
func summarizeArgs(args map[string]any) string {
	if len(args) == 0 {
		return ""
	}
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, args[k]))
	}
	s := strings.Join(parts, " ")
	if len(s) > 100 {
		s = s[:97] + "..."
	}
	return s
}

// stateColorName returns the tview color tag for a run state.
func stateColorName(state string) string {
	switch state {
	case "Done":
		return "green"
	case "AwaitingModel", "ProcessingToolCalls":
		return "yellow"
	case "Failed":
		return "red"
	default:
		return "white"
	}
}
