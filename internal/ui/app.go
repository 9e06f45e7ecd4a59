package ui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/galley/internal/device"
	"github.com/five82/galley/internal/logging"
	"github.com/five82/galley/internal/order"
	"github.com/five82/galley/internal/prefs"
	"github.com/five82/galley/internal/state"
	"github.com/five82/galley/internal/storage"
	"github.com/five82/galley/internal/syncer"
)

// Screen is the top-level view.
type Screen int

const (
	ScreenKitchen Screen = iota
	ScreenAdmin
)

// Syncer is the part of the sync engine the UI drives.
type Syncer interface {
	RefreshNow(ctx context.Context, cb syncer.Callback) error
	Health() syncer.Health
}

// Options configures the UI.
type Options struct {
	Context     context.Context
	Board       *state.Board
	Syncer      Syncer
	OnNewOrders syncer.Callback
	Store       storage.Store
	Identity    device.Identity
	WebhookURL  string
	LogPath     string
	Prefs       prefs.Prefs
	PrefsPath   string
	StartAdmin  bool
	PollTick    time.Duration

	// Overrides for tests.
	Now       func() time.Time
	Clipboard func(string) error
	Bell      io.Writer
}

// Model is the root application state for Bubble Tea.
type Model struct {
	// Configuration
	ctx         context.Context
	board       *state.Board
	syncer      Syncer
	onNewOrders syncer.Callback
	store       storage.Store
	prefsPath   string
	prefs       prefs.Prefs
	pollTick    time.Duration
	now         func() time.Time
	copyText    func(string) error
	bell        io.Writer
	keys        keyMap

	// UI state
	theme  Theme
	screen Screen
	width  int
	height int
	ready  bool

	// Data state
	snapshot    state.Snapshot
	health      syncer.Health
	lastUpdated time.Time
	known       map[string]struct{}
	seeded      bool
	refreshing  bool

	// Kitchen state
	selectedID string
	detailID   string // open detail overlay, empty when closed

	// Admin state
	identity   device.Identity
	webhookURL string
	logPath    string
	logLines   []string

	// Overlays
	showHelp bool
	modal    Modal

	// Status line
	status    string
	statusErr bool
}

// New creates a new Bubble Tea model.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}

	pollTick := opts.PollTick
	if pollTick <= 0 {
		pollTick = DefaultUIInterval
	}

	p := opts.Prefs
	if p.Theme == "" {
		p = prefs.Default()
	}

	prefsPath := opts.PrefsPath
	if prefsPath == "" {
		prefsPath = prefs.DefaultPath()
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}
	copyText := opts.Clipboard
	if copyText == nil {
		copyText = clipboard.WriteAll
	}
	bell := opts.Bell
	if bell == nil {
		bell = os.Stderr
	}

	screen := ScreenKitchen
	if opts.StartAdmin {
		screen = ScreenAdmin
	}

	return Model{
		ctx:         ctx,
		board:       opts.Board,
		syncer:      opts.Syncer,
		onNewOrders: opts.OnNewOrders,
		store:       opts.Store,
		prefsPath:   prefsPath,
		prefs:       p,
		pollTick:    pollTick,
		now:         now,
		copyText:    copyText,
		bell:        bell,
		keys:        DefaultKeyMap(),
		theme:       GetTheme(p.Theme),
		screen:      screen,
		identity:    opts.Identity,
		webhookURL:  opts.WebhookURL,
		logPath:     opts.LogPath,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{tickCmd(m.pollTick)}
	if m.board != nil {
		cmds = append(cmds, fetchSnapshotCmd(m.board), waitForChangeCmd(m.board))
	}
	if m.screen == ScreenAdmin {
		cmds = append(cmds, m.tailLog())
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		return m, nil

	case tickMsg:
		if m.syncer != nil {
			m.health = m.syncer.Health()
		}
		if m.screen == ScreenAdmin {
			return m, tea.Batch(tickCmd(m.pollTick), m.tailLog())
		}
		return m, tickCmd(m.pollTick)

	case logTailMsg:
		if msg.err == nil {
			m.logLines = msg.lines
		}
		return m, nil

	case snapshotMsg:
		return m.applySnapshot(state.Snapshot(msg))

	case boardChangedMsg:
		var cmds []tea.Cmd
		if m.board != nil {
			cmds = append(cmds, fetchSnapshotCmd(m.board), waitForChangeCmd(m.board))
		}
		return m, tea.Batch(cmds...)

	case refreshDoneMsg:
		m.refreshing = false
		m.health = msg.health
		if msg.err != nil {
			m.setError(fmt.Sprintf("refresh failed: %v", msg.err))
		} else {
			m.setStatus("Refreshed")
		}
		return m, nil

	case actionResultMsg:
		if msg.err != nil {
			m.setError(actionErrorText(msg.err))
		} else {
			m.setStatus(msg.text)
		}
		return m, nil

	case tokenRegeneratedMsg:
		if msg.err != nil {
			m.setError(fmt.Sprintf("regenerate token: %v", msg.err))
			return m, nil
		}
		m.identity.Token = msg.token
		m.setStatus("Token regenerated. Update the webhook integration.")
		return m, nil

	case copiedMsg:
		if msg.err != nil {
			m.setError(fmt.Sprintf("copy %s: %v", msg.what, msg.err))
		} else {
			m.setStatus("Copied " + msg.what)
		}
		return m, nil
	}

	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	if m.showHelp {
		return m.renderHelp()
	}
	if m.modal != nil {
		return m.modal.View(m.theme, m.width, m.height)
	}
	if m.screen == ScreenAdmin {
		return m.renderAdmin()
	}
	if m.detailID != "" {
		if o, ok := m.detailOrder(); ok {
			return m.renderDetail(o)
		}
	}
	return m.renderKitchen()
}

// applySnapshot swaps in a new board snapshot and rings the bell when ids
// appear that were not on the previous one.
func (m Model) applySnapshot(snap state.Snapshot) (tea.Model, tea.Cmd) {
	known := make(map[string]struct{}, len(snap.Orders))
	arrived := 0
	for _, o := range snap.Orders {
		known[o.ID] = struct{}{}
		if _, ok := m.known[o.ID]; !ok {
			arrived++
		}
	}
	ring := m.seeded && arrived > 0 && m.prefs.Bell

	m.snapshot = snap
	m.known = known
	m.seeded = true
	m.lastUpdated = m.now()
	m.clampSelection()
	if m.detailID != "" {
		if _, ok := m.detailOrder(); !ok {
			m.detailID = ""
		}
	}

	if ring {
		return m, bellCmd(m.bell)
	}
	return m, nil
}

// handleKey processes keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		return m, tea.Quit
	}

	if m.showHelp {
		// Any key closes help
		m.showHelp = false
		return m, nil
	}

	if m.modal != nil {
		modal, cmd, done := m.modal.Update(msg, m.keys)
		if done {
			m.modal = nil
		} else {
			m.modal = modal
		}
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		return m, nil

	case key.Matches(msg, m.keys.CycleTheme):
		m.theme = GetTheme(NextTheme(m.theme.Name))
		m.prefs.Theme = m.theme.Name
		if m.prefsPath != "" {
			if err := prefs.Save(m.prefsPath, m.prefs); err != nil {
				m.setError(fmt.Sprintf("save prefs: %v", err))
			}
		}
		return m, nil

	case key.Matches(msg, m.keys.Refresh):
		if m.refreshing || m.syncer == nil {
			return m, nil
		}
		m.refreshing = true
		m.setStatus("Refreshing...")
		return m, refreshCmd(m.ctx, m.syncer, m.onNewOrders)
	}

	switch m.screen {
	case ScreenAdmin:
		return m.handleAdminKey(msg)
	default:
		if m.detailID != "" {
			return m.handleDetailKey(msg)
		}
		return m.handleKitchenKey(msg)
	}
}

func (m *Model) setStatus(text string) {
	m.status = text
	m.statusErr = false
}

func (m *Model) setError(text string) {
	m.status = text
	m.statusErr = true
}

func actionErrorText(err error) string {
	switch {
	case errors.Is(err, state.ErrNotFound):
		return "Order is no longer on the board"
	case errors.Is(err, state.ErrInvalidTransition):
		return "That step is not allowed for this order"
	case errors.Is(err, state.ErrNotReady):
		return "Only ready orders can be completed"
	default:
		return err.Error()
	}
}

// Messages

type tickMsg time.Time

type snapshotMsg state.Snapshot

type boardChangedMsg struct{}

type refreshDoneMsg struct {
	health syncer.Health
	err    error
}

type actionResultMsg struct {
	text string
	err  error
}

type tokenRegeneratedMsg struct {
	token string
	err   error
}

type copiedMsg struct {
	what string
	err  error
}

type logTailMsg struct {
	lines []string
	err   error
}

// Commands

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func fetchSnapshotCmd(board *state.Board) tea.Cmd {
	return func() tea.Msg {
		return snapshotMsg(board.Snapshot())
	}
}

// waitForChangeCmd blocks until the board signals a mutation.
func waitForChangeCmd(board *state.Board) tea.Cmd {
	ch := board.Subscribe()
	return func() tea.Msg {
		<-ch
		return boardChangedMsg{}
	}
}

func refreshCmd(ctx context.Context, s Syncer, cb syncer.Callback) tea.Cmd {
	return func() tea.Msg {
		err := s.RefreshNow(ctx, cb)
		return refreshDoneMsg{health: s.Health(), err: err}
	}
}

func advanceCmd(ctx context.Context, board *state.Board, id string) tea.Cmd {
	return func() tea.Msg {
		next, err := board.AdvanceNext(ctx, id)
		if err != nil {
			return actionResultMsg{err: err}
		}
		return actionResultMsg{text: "Order marked " + next.Label()}
	}
}

func completeCmd(ctx context.Context, board *state.Board, id string) tea.Cmd {
	return func() tea.Msg {
		if err := board.Complete(ctx, id); err != nil {
			return actionResultMsg{err: err}
		}
		return actionResultMsg{text: "Order completed"}
	}
}

func regenerateTokenCmd(ctx context.Context, st storage.Store) tea.Cmd {
	return func() tea.Msg {
		token, err := device.RegenerateToken(ctx, st)
		return tokenRegeneratedMsg{token: token, err: err}
	}
}

func copyCmd(copyText func(string) error, what, value string) tea.Cmd {
	return func() tea.Msg {
		if value == "" {
			return copiedMsg{what: what, err: errors.New("nothing to copy")}
		}
		return copiedMsg{what: what, err: copyText(value)}
	}
}

// tailLog reads the end of the log file for the admin activity panel.
func (m Model) tailLog() tea.Cmd {
	if m.logPath == "" {
		return nil
	}
	path := m.logPath
	return func() tea.Msg {
		lines, err := logging.Tail(path, adminLogLines)
		return logTailMsg{lines: lines, err: err}
	}
}

func bellCmd(w io.Writer) tea.Cmd {
	return func() tea.Msg {
		_, _ = io.WriteString(w, "\a")
		return nil
	}
}

// Run starts the Bubble Tea program and blocks until the user quits or
// opts.Context is cancelled.
func Run(opts Options) error {
	m := New(opts)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(m.ctx))
	_, err := p.Run()
	if err != nil && m.ctx.Err() != nil && errors.Is(err, tea.ErrProgramKilled) {
		return nil
	}
	return err
}

// detailOrder reads the open order from the board so the overlay and the
// grid never disagree.
func (m Model) detailOrder() (order.Order, bool) {
	if m.board == nil || m.detailID == "" {
		return order.Order{}, false
	}
	return m.board.Get(m.detailID)
}
