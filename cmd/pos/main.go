package main

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/itrackpos/pos-engine/internal/config"
	"github.com/itrackpos/pos-engine/internal/printer"
	"github.com/itrackpos/pos-engine/internal/receipt"
	"github.com/itrackpos/pos-engine/internal/scan"
	"github.com/itrackpos/pos-engine/internal/upstream"
	"github.com/itrackpos/pos-engine/pkg/payload"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	activeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	scanStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
)

// Form fields, in focus order.
const (
	fieldName = iota
	fieldCourse
	fieldOR
	fieldItem
	fieldQty
	fieldCount
)

type itemsMsg struct {
	items []upstream.Item
	err   error
}

type submitMsg struct {
	orderID int
	total   float64
	jobID   string
	err     error
}

type model struct {
	cfg     *config.Config
	client  *upstream.Client
	manager *printer.Manager
	queue   *printer.PrintQueue

	classifier *scan.Classifier

	inputs [fieldCount]textinput.Model
	focus  int

	items []upstream.Item

	template receipt.Template

	status    string
	statusBad bool
	lastScan  string
	busy      bool
}

func newModel(cfg *config.Config, manager *printer.Manager, queue *printer.PrintQueue) *model {
	m := &model{
		cfg:        cfg,
		client:     upstream.NewClient(cfg.UpstreamURL, 0),
		manager:    manager,
		queue:      queue,
		classifier: scan.NewClassifier(),
		template:   receipt.TemplateGarment,
	}

	labels := [fieldCount]string{"Customer name", "Course", "OR number", "Item #", "Qty"}
	for i := range m.inputs {
		in := textinput.New()
		in.Placeholder = labels[i]
		in.CharLimit = 64
		in.Width = 28
		m.inputs[i] = in
	}
	m.inputs[fieldQty].SetValue("1")
	m.inputs[fieldName].Focus()

	return m
}

func (m *model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.fetchItems())
}

func (m *model) fetchItems() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), upstream.DefaultTimeout)
		defer cancel()

		items, err := m.client.Items(ctx, "")
		return itemsMsg{items: items, err: err}
	}
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case itemsMsg:
		if msg.err != nil {
			m.setStatus(fmt.Sprintf("catalog fetch failed: %v", msg.err), true)
			return m, nil
		}
		m.items = msg.items
		m.setStatus(fmt.Sprintf("catalog loaded: %d items", len(m.items)), false)
		return m, nil

	case submitMsg:
		m.busy = false
		if msg.err != nil {
			m.setStatus(fmt.Sprintf("submit failed: %v", msg.err), true)
			return m, nil
		}
		m.setStatus(fmt.Sprintf("order %d recorded, total PHP %.2f, print job %s",
			msg.orderID, msg.total, msg.jobID), false)
		m.clearForm()
		return m, nil
	}

	return m, nil
}

// handleKey routes every keystroke through the scan classifier first.
// Scanner bursts are swallowed before the focused field ever sees
// them; human typing passes through untouched.
func (m *model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return m, tea.Quit
	}

	action := m.classifier.Feed(keyEventFrom(msg))

	switch action.Kind {
	case scan.ActionCompleted:
		m.applyScan(action)
		return m, nil
	case scan.ActionBuffered, scan.ActionIgnored, scan.ActionCleared:
		return m, nil
	}

	// Pass-through: ordinary form interaction.
	switch msg.Type {
	case tea.KeyEnter:
		return m, m.submit()
	case tea.KeyTab, tea.KeyDown:
		m.setFocus((m.focus + 1) % fieldCount)
		return m, nil
	case tea.KeyShiftTab, tea.KeyUp:
		m.setFocus((m.focus + fieldCount - 1) % fieldCount)
		return m, nil
	case tea.KeyF2:
		if m.template == receipt.TemplateGarment {
			m.template = receipt.TemplateBook
		} else {
			m.template = receipt.TemplateGarment
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

// keyEventFrom translates a bubbletea key message for the classifier.
func keyEventFrom(msg tea.KeyMsg) scan.KeyEvent {
	ev := scan.KeyEvent{
		When:          time.Now(),
		Alt:           msg.Alt,
		EditableFocus: true, // the form always has a focused input
	}

	switch msg.Type {
	case tea.KeyRunes:
		if len(msg.Runes) == 1 {
			ev.Key = scan.KeyRune
			ev.Rune = msg.Runes[0]
		} else {
			ev.Key = scan.KeyOther
		}
	case tea.KeyEnter:
		ev.Key = scan.KeyEnter
	case tea.KeyTab:
		ev.Key = scan.KeyTab
	case tea.KeyEsc:
		ev.Key = scan.KeyEscape
	case tea.KeySpace:
		ev.Key = scan.KeyRune
		ev.Rune = ' '
	default:
		ev.Key = scan.KeyOther
	}

	return ev
}

// applyScan fills the form from a completed ID scan.
func (m *model) applyScan(action scan.Action) {
	m.lastScan = action.Raw
	if action.Scan.Name != "" {
		m.inputs[fieldName].SetValue(action.Scan.Name)
	}
	if action.Scan.Course != "" {
		m.inputs[fieldCourse].SetValue(action.Scan.Course)
	}
	m.setStatus("ID scanned", false)
}

func (m *model) setFocus(idx int) {
	m.inputs[m.focus].Blur()
	m.focus = idx
	m.inputs[m.focus].Focus()
}

func (m *model) setStatus(s string, bad bool) {
	m.status = s
	m.statusBad = bad
}

func (m *model) clearForm() {
	for i := range m.inputs {
		m.inputs[i].SetValue("")
	}
	m.inputs[fieldQty].SetValue("1")
	m.setFocus(fieldName)
}

// submit records the order upstream, then prints the receipt.
func (m *model) submit() tea.Cmd {
	if m.busy {
		m.setStatus("submission already in progress", true)
		return nil
	}

	name := strings.TrimSpace(m.inputs[fieldName].Value())
	if name == "" {
		m.setStatus("customer name is required", true)
		return nil
	}

	itemNo, err := strconv.Atoi(strings.TrimSpace(m.inputs[fieldItem].Value()))
	if err != nil || itemNo < 1 || itemNo > len(m.items) {
		m.setStatus("pick an item # from the catalog", true)
		return nil
	}
	item := m.items[itemNo-1]

	qty, err := strconv.Atoi(strings.TrimSpace(m.inputs[fieldQty].Value()))
	if err != nil || qty < 1 {
		m.setStatus("quantity must be a positive number", true)
		return nil
	}

	course := strings.TrimSpace(m.inputs[fieldCourse].Value())
	orNumber := strings.TrimSpace(m.inputs[fieldOR].Value())
	tpl := m.template

	m.busy = true
	m.setStatus("submitting...", false)

	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), upstream.DefaultTimeout)
		defer cancel()

		resp, err := m.client.SubmitOrder(ctx, upstream.OrderRequest{
			UserID:       m.cfg.UserID,
			CustomerName: name,
			ORNumber:     orNumber,
			Course:       course,
			Items:        []upstream.OrderItem{{ItemID: item.ItemID, Quantity: qty}},
		})
		if err != nil {
			return submitMsg{err: err}
		}

		p := &payload.ReceiptPayload{
			Date:         time.Now().Format("2006-01-02"),
			CustomerName: name,
			Course:       course,
			Items: []payload.OrderLine{
				{Name: item.Name, Qty: qty, Price: item.Price},
			},
			Total: resp.TotalPrice,
		}

		data, err := receipt.Encode(p, tpl, "")
		if err != nil {
			return submitMsg{err: fmt.Errorf("encode receipt: %w", err)}
		}

		target := firstPrinterID(m.manager)
		if target == "" {
			return submitMsg{err: printer.ErrNoDeviceSelected}
		}

		jobID, err := m.queue.Enqueue(target, data)
		if err != nil {
			return submitMsg{err: err}
		}

		return submitMsg{orderID: resp.OrderID, total: resp.TotalPrice, jobID: jobID}
	}
}

func firstPrinterID(manager *printer.Manager) string {
	if id := manager.ConnectedPrinterID(); id != "" {
		return id
	}
	for _, p := range manager.GetAllPrinters() {
		return p.ID
	}
	return ""
}

func (m *model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("iTrack POS") + "  " +
		labelStyle.Render("template: "+string(m.template)+" (F2 to switch)") + "\n\n")

	for i := range m.inputs {
		prefix := "  "
		if i == m.focus {
			prefix = activeStyle.Render("> ")
		}
		b.WriteString(prefix + m.inputs[i].View() + "\n")
	}

	b.WriteString("\n" + labelStyle.Render("Catalog:") + "\n")
	if len(m.items) == 0 {
		b.WriteString(labelStyle.Render("  (loading...)") + "\n")
	}
	for i, item := range m.items {
		if i >= 8 {
			b.WriteString(labelStyle.Render(fmt.Sprintf("  ... and %d more", len(m.items)-i)) + "\n")
			break
		}
		b.WriteString(fmt.Sprintf("  %2d. %-24s PHP %8.2f\n", i+1, item.Name, item.Price))
	}

	if m.lastScan != "" {
		b.WriteString("\n" + scanStyle.Render("last scan: "+m.lastScan) + "\n")
	}

	if m.status != "" {
		style := okStyle
		if m.statusBad {
			style = errStyle
		}
		b.WriteString("\n" + style.Render(m.status) + "\n")
	}

	b.WriteString("\n" + labelStyle.Render("enter submit · tab next field · esc clear scan · ctrl+c quit") + "\n")
	return b.String()
}

func main() {
	cfg := config.Load()

	manager, err := printer.NewManager(cfg.RegistryPath, cfg.SendTimeout)
	if err != nil {
		log.Fatalf("Failed to create printer manager: %v", err)
	}
	if _, err := manager.DetectPrinters(); err != nil {
		log.Printf("Warning: printer detection failed: %v", err)
	}

	queue := printer.NewPrintQueue(manager)
	defer queue.Stop()

	p := tea.NewProgram(newModel(cfg, manager, queue), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		log.Fatalf("UI error: %v", err)
	}

	manager.Disconnect()
}
