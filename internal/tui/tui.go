// Package tui provides a Bubble Tea terminal user interface for factorio-mod-downloader.
package tui

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/handiism/factorio-mod-downloader/internal/config"
	"github.com/handiism/factorio-mod-downloader/internal/download"
	"github.com/handiism/factorio-mod-downloader/internal/http"
	ioutils "github.com/handiism/factorio-mod-downloader/internal/io"
	"github.com/handiism/factorio-mod-downloader/internal/logging"
	"github.com/handiism/factorio-mod-downloader/internal/model"
	"github.com/handiism/factorio-mod-downloader/internal/portal"
	"github.com/handiism/factorio-mod-downloader/internal/registry"
	"github.com/sirupsen/logrus"
)

// Styles for the TUI
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#F5A623")).
			MarginBottom(1)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#4ECDC4"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#95E1A3"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFE66D"))

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A8DADC"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6C757D"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#4ECDC4")).
			Padding(1, 2)

	modStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F8B500"))
)

// State represents the current UI state.
type State int

const (
	StateInput State = iota
	StateDownloading
	StateComplete
	StateError
)

const logFileName = "fmd-tui.log"

// Model is the Bubble Tea model for the TUI.
type Model struct {
	state     State
	textInput textinput.Model
	spinner   spinner.Model
	progress  progress.Model
	bar       progress.Model
	settings  *config.Settings
	configErr error
	err       error

	// log writes to the session log file shared by every download.
	log *logrus.Logger

	// Download context
	ctx    context.Context
	cancel context.CancelFunc

	manager  *download.Manager
	tracker  *tracker
	snapshot Snapshot
	result   model.AggregateResult

	// Mods known to the manager and how many of them reached a final state.
	totalMods int
	doneMods  int

	// Options
	optional bool
	resume   bool
	verbose  bool

	width  int
	height int
}

// NewModel creates a new TUI model using the settings file in the
// application directory.
func NewModel() Model {
	settings, err := config.Load(config.DefaultPath())
	if err != nil {
		settings = config.DefaultSettings()
	}
	return newModel(settings, err)
}

func newModel(settings *config.Settings, configErr error) Model {
	ti := textinput.New()
	ti.Placeholder = "flib, flib@0.12.4 or https://mods.factorio.com/mod/flib"
	ti.Focus()
	ti.CharLimit = 500
	ti.Width = 60

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#F5A623"))

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 50

	bar := progress.New(progress.WithSolidFill("#4ECDC4"))
	bar.Width = 30

	ctx, cancel := context.WithCancel(context.Background())

	return Model{
		state:     StateInput,
		textInput: ti,
		spinner:   sp,
		progress:  prog,
		bar:       bar,
		settings:  settings,
		configErr: configErr,
		log:       logging.Discard(),
		ctx:       ctx,
		cancel:    cancel,
		optional:  settings.IncludeOptional,
		resume:    settings.Resume,
	}
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

// Message types
type (
	// DownloadDoneMsg is sent when the download finishes.
	DownloadDoneMsg struct {
		Result model.AggregateResult
	}

	// TickMsg is for periodic progress updates.
	TickMsg struct{}
)

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = min(max(msg.Width-20, 20), 80)
		m.bar.Width = min(max(msg.Width-50, 10), 40)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.cancel()
			return m, tea.Quit

		case "esc":
			if m.state == StateInput {
				return m, tea.Quit
			}
			if m.state == StateDownloading {
				m.cancel()
				m.state = StateError
				m.err = fmt.Errorf("cancelled by user")
			}

		case "enter":
			if m.state == StateInput && strings.TrimSpace(m.textInput.Value()) != "" {
				return m.startDownload()
			}

		case "ctrl+o":
			if m.state == StateInput {
				m.optional = !m.optional
			}
			return m, nil

		case "ctrl+r":
			if m.state == StateInput {
				m.resume = !m.resume
			}
			return m, nil

		case "ctrl+l":
			if m.state == StateInput {
				m.verbose = !m.verbose
			}
			return m, nil

		case "q":
			if m.state == StateComplete || m.state == StateError {
				return m, tea.Quit
			}

		case "r":
			if m.state == StateComplete || m.state == StateError {
				cmd := m.reset()
				return m, tea.Batch(textinput.Blink, cmd)
			}
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case DownloadDoneMsg:
		m.result = msg.Result
		m.poll()
		if m.state != StateDownloading {
			break
		}
		if m.ctx.Err() != nil {
			m.state = StateError
			m.err = fmt.Errorf("cancelled by user")
		} else {
			m.state = StateComplete
		}

	case TickMsg:
		if m.state == StateDownloading {
			m.poll()
			var percent float64
			if m.totalMods > 0 {
				percent = float64(m.doneMods) / float64(m.totalMods)
			}
			cmds = append(cmds, m.progress.SetPercent(percent), m.tickProgress())
		}

	case progress.FrameMsg:
		progressModel, cmd := m.progress.Update(msg)
		m.progress = progressModel.(progress.Model)
		cmds = append(cmds, cmd)
	}

	if m.state == StateInput {
		var cmd tea.Cmd
		m.textInput, cmd = m.textInput.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// poll copies the tracker and manager state into the model.
func (m *Model) poll() {
	if m.tracker != nil {
		m.snapshot = m.tracker.Snapshot()
	}
	if m.manager == nil {
		return
	}
	states := m.manager.States()
	m.totalMods = len(states)
	m.doneMods = 0
	for _, state := range states {
		if state.IsTerminal() {
			m.doneMods++
		}
	}
}

// reset returns to the input screen. The returned command animates the
// progress bar back to zero.
func (m *Model) reset() tea.Cmd {
	m.state = StateInput
	m.err = nil
	m.manager = nil
	m.tracker = nil
	m.snapshot = Snapshot{}
	m.result = model.AggregateResult{}
	m.totalMods = 0
	m.doneMods = 0
	m.ctx, m.cancel = context.WithCancel(context.Background())
	m.textInput.SetValue("")
	m.textInput.Focus()
	return m.progress.SetPercent(0)
}

// tickProgress returns a command to tick progress updates.
func (m Model) tickProgress() tea.Cmd {
	return tea.Tick(200*time.Millisecond, func(_ time.Time) tea.Msg {
		return TickMsg{}
	})
}

// View renders the UI.
func (m Model) View() string {
	var b strings.Builder

	// Header
	b.WriteString(titleStyle.Render("⚙ Factorio Mod Downloader"))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("Download mods with all their dependencies"))
	b.WriteString("\n\n")

	switch m.state {
	case StateInput:
		b.WriteString(m.viewInput())
	case StateDownloading:
		b.WriteString(m.viewDownloading())
	case StateComplete:
		b.WriteString(m.viewComplete())
	case StateError:
		b.WriteString(m.viewError())
	}

	// Footer
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(m.getHelpText()))

	return b.String()
}

func checkbox(on bool) string {
	if on {
		return "[×]"
	}
	return "[ ]"
}

func (m Model) viewInput() string {
	var b strings.Builder

	b.WriteString(subtitleStyle.Render("Enter a mod name or URL:"))
	b.WriteString("\n\n")
	b.WriteString(m.textInput.View())
	b.WriteString("\n\n")

	b.WriteString(infoStyle.Render("Options:"))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("  %s Include optional dependencies (ctrl+o)\n", checkbox(m.optional)))
	b.WriteString(fmt.Sprintf("  %s Resume partial downloads (ctrl+r)\n", checkbox(m.resume)))
	b.WriteString(fmt.Sprintf("  %s Verbose output (ctrl+l)\n", checkbox(m.verbose)))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("Mods directory: %s", m.settings.OutputDir)))
	b.WriteString("\n")
	if m.configErr != nil {
		b.WriteString(warningStyle.Render(fmt.Sprintf("! Using default settings: %v", m.configErr)))
		b.WriteString("\n")
	}

	return b.String()
}

func (m Model) viewDownloading() string {
	var b strings.Builder

	if m.totalMods == 0 {
		b.WriteString(m.spinner.View())
		b.WriteString(" ")
		b.WriteString(subtitleStyle.Render("Resolving dependencies..."))
		b.WriteString("\n\n")
	} else {
		b.WriteString(m.progress.ViewAs(float64(m.doneMods) / float64(m.totalMods)))
		b.WriteString("\n")
		b.WriteString(infoStyle.Render(fmt.Sprintf(
			"Mods: %d/%d | Downloaded: %.2f MB",
			m.doneMods,
			m.totalMods,
			float64(m.snapshot.Bytes)/1024/1024,
		)))
		b.WriteString("\n\n")
	}

	for _, transfer := range m.snapshot.Active {
		b.WriteString(modStyle.Render(fmt.Sprintf("  %-28s", truncate(transfer.Mod, 28))))
		b.WriteString(m.bar.ViewAs(transfer.Percent / 100))
		b.WriteString(dimStyle.Render(fmt.Sprintf(" %.1f/%.1f MB %.2f MB/s", transfer.DownloadedMB, transfer.TotalMB, transfer.SpeedMBps)))
		b.WriteString("\n")
	}
	if len(m.snapshot.Active) > 0 {
		b.WriteString("\n")
	}

	b.WriteString(m.renderLogs())

	return b.String()
}

func (m Model) viewComplete() string {
	var b strings.Builder

	var summary strings.Builder
	title := "✨ Download Complete!"
	if !m.result.Success {
		title = "⚠ Download finished with errors"
	}
	summary.WriteString(title + "\n\n")
	summary.WriteString(fmt.Sprintf("Downloaded: %d\n", len(m.result.DownloadedNames)))
	summary.WriteString(fmt.Sprintf("Already present: %d\n", len(m.result.SkippedNames)))
	summary.WriteString(fmt.Sprintf("Failed: %d\n", len(m.result.Failed)))
	summary.WriteString(fmt.Sprintf("Size: %.2f MB\n", float64(m.result.TotalBytes)/1024/1024))
	summary.WriteString(fmt.Sprintf("Time: %s", m.result.Duration.Round(time.Millisecond)))
	b.WriteString(boxStyle.Render(summary.String()))
	b.WriteString("\n")

	for _, failed := range m.result.Failed {
		b.WriteString(errorStyle.Render(fmt.Sprintf("✗ %s: %s", failed.Name, failed.Error)))
		b.WriteString("\n")
		if failed.Suggestion != "" {
			b.WriteString(dimStyle.Render("  " + failed.Suggestion))
			b.WriteString("\n")
		}
	}

	return b.String()
}

func (m Model) viewError() string {
	var b strings.Builder

	b.WriteString(errorStyle.Render("❌ Error occurred:"))
	b.WriteString("\n\n")
	if m.err != nil {
		b.WriteString(fmt.Sprintf("  %s", m.err.Error()))
	}

	return b.String()
}

func (m Model) renderLogs() string {
	var b strings.Builder

	for _, log := range m.snapshot.Logs {
		var style lipgloss.Style
		prefix := "•"
		switch log.Level {
		case download.LevelError:
			style = errorStyle
			prefix = "✗"
		case download.LevelWarning:
			style = warningStyle
			prefix = "!"
		case download.LevelSuccess:
			style = successStyle
			prefix = "✓"
		case download.LevelInfo:
			style = infoStyle
			prefix = "›"
		default:
			style = dimStyle
		}
		b.WriteString(style.Render(prefix + " " + log.Message))
		b.WriteString("\n")
	}

	return b.String()
}

func (m Model) getHelpText() string {
	switch m.state {
	case StateInput:
		return "enter: start • ctrl+o: optional • ctrl+r: resume • ctrl+l: verbose • esc: quit"
	case StateDownloading:
		return "esc: cancel"
	case StateComplete, StateError:
		return "r: new download • q: quit"
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}

// startDownload builds a manager for the current options and runs it in
// the background.
func (m Model) startDownload() (tea.Model, tea.Cmd) {
	settings := *m.settings
	settings.IncludeOptional = m.optional
	settings.Resume = m.resume
	if m.verbose {
		settings.LogLevel = "debug"
	}
	if err := settings.Validate(); err != nil {
		m.state = StateError
		m.err = fmt.Errorf("invalid config: %w", err)
		return m, nil
	}

	log := m.log
	if level, err := logrus.ParseLevel(settings.LogLevel); err == nil {
		log.SetLevel(level)
	}
	reg, err := registry.Open(registry.DefaultPath())
	if err != nil {
		log.WithError(err).Warn("Mod registry is unreadable, downloads will not be recorded")
		reg = nil
	}

	m.tracker = newTracker(m.verbose)
	if reg != nil {
		m.tracker.onComplete = func(e download.Event) {
			reg.Add(e.Mod, e.Version, e.Path, e.Bytes)
		}
	}

	client := http.NewClient(
		http.WithTimeout(settings.RequestTimeoutDuration()),
		http.WithUserAgent(settings.UserAgent),
		http.WithRateLimit(settings.RequestsPerSecond, settings.RequestBurst),
	)
	provider, err := portal.New(settings.Provider, client, settings.APIURL, settings.CatalogURL, settings.MirrorPageURL)
	if err != nil {
		m.state = StateError
		m.err = err
		return m, nil
	}
	m.manager = download.NewManager(&settings, provider, client, log, m.tracker.Observe)
	m.state = StateDownloading

	ctx, manager, input := m.ctx, m.manager, strings.TrimSpace(m.textInput.Value())
	run := func() tea.Msg {
		result := manager.DownloadMod(ctx, input)
		if reg != nil {
			if err := reg.Save(context.Background()); err != nil {
				log.WithError(err).Warn("Could not save mod registry")
			}
		}
		return DownloadDoneMsg{Result: result}
	}

	return m, tea.Batch(run, m.tickProgress(), m.spinner.Tick)
}

// openLog returns a logger writing to path, since the terminal belongs to
// the UI. The caller closes the returned file when the program exits.
func openLog(path string, settings *config.Settings) (*logrus.Logger, io.Closer) {
	if err := ioutils.EnsureDir(filepath.Dir(path)); err != nil {
		return logging.Discard(), nil
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return logging.Discard(), nil
	}
	log, err := logging.New(settings.LogLevel, settings.LogFormat, file)
	if err != nil {
		file.Close()
		return logging.Discard(), nil
	}
	return log, file
}

// Run starts the TUI application.
func Run() error {
	m := NewModel()
	log, file := openLog(filepath.Join(config.AppDir(), logFileName), m.settings)
	if file != nil {
		defer file.Close()
	}
	m.log = log

	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
