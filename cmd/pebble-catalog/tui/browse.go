package tui

import (
	"context"
	"fmt"
	"strconv"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/marshallshelly/pebble-catalog/pkg/catalog"
	"github.com/marshallshelly/pebble-catalog/pkg/query"
	"github.com/marshallshelly/pebble-catalog/pkg/repository"
)

// Products is what the browser needs from the product repository.
type Products interface {
	FindPage(ctx context.Context, d query.Descriptor, page query.PageRequest) (repository.Page[catalog.Product], error)
	DeleteByID(ctx context.Context, id any) (int64, error)
}

// BrowseMode represents the current mode of the browser
type BrowseMode int

const (
	ModeList BrowseMode = iota
	ModeFilter
	ModeConfirm
	ModeError
)

// BrowseModel is the Bubbletea model for paging through products.
type BrowseModel struct {
	ctx      context.Context
	products Products

	mode         BrowseMode
	table        table.Model
	filter       textinput.Model
	confirmation ConfirmationDialog
	logs         LogView
	err          error
	width        int
	height       int

	pageSize int
	page     repository.Page[catalog.Product]
	loading  bool
}

// Messages
type pageLoadedMsg struct {
	page repository.Page[catalog.Product]
}

type deletedMsg struct {
	id int64
	n  int64
}

type errorMsg struct {
	err error
}

// NewBrowseModel creates a browser showing pageSize products at a time.
func NewBrowseModel(ctx context.Context, products Products, pageSize int) BrowseModel {
	if pageSize <= 0 {
		pageSize = 20
	}

	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "ID", Width: 6},
			{Title: "Name", Width: 24},
			{Title: "Price", Width: 10},
			{Title: "Stock", Width: 8},
			{Title: "Provider", Width: 18},
			{Title: "Description", Width: 32},
		}),
		table.WithFocused(true),
		table.WithHeight(pageSize),
	)
	t.SetStyles(tableStyles())

	f := textinput.New()
	f.Placeholder = "name contains…"
	f.Prompt = "/ "
	f.CharLimit = 64

	return BrowseModel{
		ctx:      ctx,
		products: products,
		mode:     ModeList,
		table:    t,
		filter:   f,
		logs:     NewLogView(3),
		pageSize: pageSize,
	}
}

// Init loads the first page.
func (m BrowseModel) Init() tea.Cmd {
	return m.load(0)
}

// descriptor returns the query for the current filter.
func (m BrowseModel) descriptor() query.Descriptor {
	if v := m.filter.Value(); v != "" {
		return query.Where(query.Contains("Name", v))
	}
	return query.All()
}

func (m BrowseModel) load(index int) tea.Cmd {
	d := m.descriptor()
	page := query.PageOf(index, m.pageSize, query.Order{Path: "ID", Direction: query.Asc})
	return func() tea.Msg {
		p, err := m.products.FindPage(m.ctx, d, page)
		if err != nil {
			return errorMsg{err: err}
		}
		return pageLoadedMsg{page: p}
	}
}

func (m BrowseModel) delete(id int64) tea.Cmd {
	return func() tea.Msg {
		n, err := m.products.DeleteByID(m.ctx, id)
		if err != nil {
			return errorMsg{err: err}
		}
		return deletedMsg{id: id, n: n}
	}
}

// selectedID returns the id of the highlighted row.
func (m BrowseModel) selectedID() (int64, bool) {
	row := m.table.SelectedRow()
	if row == nil {
		return 0, false
	}
	id, err := strconv.ParseInt(row[0], 10, 64)
	return id, err == nil
}

// Update handles messages
func (m BrowseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case pageLoadedMsg:
		m.loading = false
		m.page = msg.page
		m.table.SetRows(productRows(msg.page.Items))
		m.table.SetCursor(0)
		return m, nil

	case deletedMsg:
		if msg.n == 0 {
			m.logs.AddLog(warningStyle.Render(fmt.Sprintf("product %d was already gone", msg.id)))
		} else {
			m.logs.AddLog(successStyle.Render(fmt.Sprintf("✓ deleted product %d", msg.id)))
		}
		return m, m.load(m.page.Index)

	case confirmResultMsg:
		m.mode = ModeList
		if !msg.confirmed {
			return m, nil
		}
		id, ok := m.selectedID()
		if !ok {
			return m, nil
		}
		return m, m.delete(id)

	case errorMsg:
		m.loading = false
		m.mode = ModeError
		m.err = msg.err
		return m, nil

	case tea.KeyMsg:
		switch m.mode {
		case ModeFilter:
			switch msg.String() {
			case "enter":
				m.mode = ModeList
				m.filter.Blur()
				m.table.Focus()
				m.loading = true
				return m, m.load(0)
			case "esc":
				m.mode = ModeList
				m.filter.Blur()
				m.table.Focus()
				return m, nil
			}
			var cmd tea.Cmd
			m.filter, cmd = m.filter.Update(msg)
			return m, cmd

		case ModeConfirm:
			return m, m.confirmation.Update(msg)

		case ModeError:
			switch msg.String() {
			case "ctrl+c", "q":
				return m, tea.Quit
			case "enter", "esc":
				m.mode = ModeList
				m.err = nil
				return m, nil
			}
			return m, nil

		case ModeList:
			switch msg.String() {
			case "ctrl+c", "q":
				return m, tea.Quit
			case "/":
				m.mode = ModeFilter
				m.table.Blur()
				return m, m.filter.Focus()
			case "n", "right":
				if m.page.Index+1 < m.page.TotalPages() {
					m.loading = true
					return m, m.load(m.page.Index + 1)
				}
				return m, nil
			case "p", "left":
				if m.page.Index > 0 {
					m.loading = true
					return m, m.load(m.page.Index - 1)
				}
				return m, nil
			case "r":
				m.loading = true
				return m, m.load(m.page.Index)
			case "d":
				row := m.table.SelectedRow()
				if row == nil {
					return m, nil
				}
				m.confirmation = NewConfirmationDialog("Delete product",
					fmt.Sprintf("Delete product %s - %s?", row[0], row[1]))
				m.mode = ModeConfirm
				return m, nil
			}
		}
	}

	if m.mode == ModeList {
		var cmd tea.Cmd
		m.table, cmd = m.table.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View renders the UI
func (m BrowseModel) View() string {
	switch m.mode {
	case ModeConfirm:
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, m.confirmation.View())

	case ModeError:
		msg := titleStyle.Render("Error") + "\n\n" +
			errorStyle.Render(m.err.Error()) + "\n\n" +
			helpStyle.Render(FormatKey("enter", "back")+" • "+FormatKey("q", "quit"))
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, boxStyle.Render(msg))
	}

	status := fmt.Sprintf("page %d of %d • %d product(s)", m.page.Index+1, max(m.page.TotalPages(), 1), m.page.Total)
	if m.loading {
		status += " • loading…"
	}

	parts := []string{titleStyle.Render("Products"), m.table.View(), subtitleStyle.Render(status)}
	if m.mode == ModeFilter || m.filter.Value() != "" {
		parts = append(parts, m.filter.View())
	}
	if logs := m.logs.View(); logs != "" {
		parts = append(parts, logs)
	}
	parts = append(parts, helpStyle.Render(
		FormatKey("↑/↓", "navigate")+" • "+
			FormatKey("←/→", "page")+" • "+
			FormatKey("/", "filter")+" • "+
			FormatKey("d", "delete")+" • "+
			FormatKey("q", "quit"),
	))
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func productRows(products []catalog.Product) []table.Row {
	rows := make([]table.Row, len(products))
	for i, p := range products {
		provider, description := "-", "-"
		if p.Provider != nil {
			provider = p.Provider.Name
		}
		if p.ProductDetail != nil && p.ProductDetail.Description != nil {
			description = *p.ProductDetail.Description
		}
		rows[i] = table.Row{
			strconv.FormatInt(p.ID, 10),
			p.Name,
			strconv.Itoa(p.Price),
			strconv.Itoa(p.Stock),
			provider,
			description,
		}
	}
	return rows
}

// RunBrowser starts the interactive product browser
func RunBrowser(ctx context.Context, products Products, pageSize int) error {
	p := tea.NewProgram(NewBrowseModel(ctx, products, pageSize), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
