// Package tui is the interactive terminal front-end.
package tui

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"schls/core/audio"
	"schls/core/codec"
	"schls/core/downloader"
	"schls/core/soundcloud"
	"schls/core/utils"
	"schls/logger"
	"schls/model"
)

// debounceDelay is how long the URL field must be idle before resolving.
const debounceDelay = 500 * time.Millisecond

type focus int

const (
	focusURL focus = iota
	focusFilename
	focusCodec
	focusButton
	focusCount
)

type (
	accountMsg struct {
		username string
	}
	debounceMsg struct {
		seq int
	}
	resolvedMsg struct {
		url   string
		track *model.Track
		err   error
	}
	startedMsg struct {
		events <-chan audio.Event
		path   string
		err    error
	}
	eventMsg struct {
		event audio.Event
		ok    bool
	}
	// CredentialsChangedMsg tells the UI to refresh the account line.
	CredentialsChangedMsg struct{}
)

// Model is the bubbletea model of the downloader screen.
type Model struct {
	ctx    context.Context
	svc    *downloader.Service
	client *soundcloud.Client
	latest *soundcloud.Latest

	url      textinput.Model
	filename textinput.Model
	codecs   []codec.Codec
	codecIdx int
	focus    focus

	username    string
	debounceSeq int
	resolving   bool
	track       *model.Track
	resolveErr  error

	downloading bool
	cancel      context.CancelFunc
	events      <-chan audio.Event
	bar         progress.Model
	current     int64
	total       int64
	stage       string
	result      string
	failed      bool

	width int
}

// New creates the model. defaultCodec preselects the codec list.
func New(ctx context.Context, svc *downloader.Service, defaultCodec codec.Codec) Model {
	url := textinput.New()
	url.Placeholder = "https://soundcloud.com/artist/track"
	url.Prompt = ""
	url.CharLimit = 512
	url.Width = 60
	url.Focus()

	filename := textinput.New()
	filename.Placeholder = "filename (without extension)"
	filename.Prompt = ""
	filename.CharLimit = 255
	filename.Width = 60

	codecs := codec.All()
	idx := 0
	for i, c := range codecs {
		if c == defaultCodec {
			idx = i
		}
	}

	return Model{
		ctx:      ctx,
		svc:      svc,
		client:   svc.Client(),
		latest:   &soundcloud.Latest{},
		url:      url,
		filename: filename,
		codecs:   codecs,
		codecIdx: idx,
		username: "...",
		bar:      progress.New(progress.WithDefaultGradient()),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.fetchAccount())
}

func (m Model) fetchAccount() tea.Cmd {
	client := m.client
	ctx := m.ctx
	return func() tea.Msg {
		account, err := client.Me(ctx)
		if err != nil || account.Username == "" {
			logger.Warn("account lookup failed", logger.ErrorField(err))
			return accountMsg{username: "Unknown"}
		}
		return accountMsg{username: account.Username}
	}
}

func (m Model) resolve(url string) tea.Cmd {
	client := m.client
	latest := m.latest
	ctx := m.ctx
	return func() tea.Msg {
		var track *model.Track
		err := latest.Do(ctx, func(ctx context.Context) error {
			t, err := client.Resolve(ctx, url)
			track = t
			return err
		})
		return resolvedMsg{url: url, track: track, err: err}
	}
}

func waitForEvent(events <-chan audio.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		return eventMsg{event: ev, ok: ok}
	}
}

func (m Model) selectedCodec() codec.Codec {
	return m.codecs[m.codecIdx]
}

func (m Model) startDownload() (Model, tea.Cmd) {
	if m.downloading || m.url.Value() == "" {
		return m, nil
	}

	ctx, cancel := context.WithCancel(m.ctx)
	m.downloading = true
	m.cancel = cancel
	m.current, m.total = 0, 0
	m.stage = "Resolving stream..."
	m.result = ""
	m.failed = false

	svc := m.svc
	req := downloader.Request{
		URL:      m.url.Value(),
		Codec:    string(m.selectedCodec()),
		Filename: m.filename.Value(),
	}
	return m, func() tea.Msg {
		prepared, err := svc.Prepare(ctx, req)
		if err != nil {
			return startedMsg{err: err}
		}
		_, events := svc.Start(ctx, prepared)
		return startedMsg{events: events, path: prepared.Job.OutputPath}
	}
}

func (m *Model) setFocus(f focus) {
	m.focus = (f + focusCount) % focusCount
	m.url.Blur()
	m.filename.Blur()
	switch m.focus {
	case focusURL:
		m.url.Focus()
	case focusFilename:
		m.filename.Focus()
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = max(20, min(msg.Width-10, 80))
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case accountMsg:
		m.username = msg.username
		return m, nil

	case CredentialsChangedMsg:
		return m, m.fetchAccount()

	case debounceMsg:
		if msg.seq != m.debounceSeq {
			return m, nil
		}
		url := m.url.Value()
		if soundcloud.ValidateTrackURL(url) != nil {
			m.resolving = false
			return m, nil
		}
		m.resolving = true
		return m, m.resolve(url)

	case resolvedMsg:
		if errors.Is(msg.err, soundcloud.ErrSuperseded) || msg.url != m.url.Value() {
			return m, nil
		}
		m.resolving = false
		m.track, m.resolveErr = msg.track, msg.err
		if msg.err == nil && m.filename.Value() == "" {
			m.filename.SetValue(utils.SanitizeFilename(msg.track.Title))
		}
		return m, nil

	case startedMsg:
		if msg.err != nil {
			m.finish("Error: "+msg.err.Error(), true)
			return m, nil
		}
		m.events = msg.events
		return m, waitForEvent(msg.events)

	case eventMsg:
		return m.handleEvent(msg)

	case progress.FrameMsg:
		bar, cmd := m.bar.Update(msg)
		m.bar = bar.(progress.Model)
		return m, cmd
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		if m.cancel != nil {
			m.cancel()
		}
		m.latest.Cancel()
		return m, tea.Quit
	case "esc":
		if m.downloading && m.cancel != nil {
			m.cancel()
			m.stage = "Cancelling..."
		}
		return m, nil
	case "tab", "down":
		m.setFocus(m.focus + 1)
		return m, nil
	case "shift+tab", "up":
		m.setFocus(m.focus - 1)
		return m, nil
	case "enter":
		if m.focus == focusButton || m.focus == focusURL || m.focus == focusFilename {
			return m.startDownload()
		}
		return m, nil
	}

	switch m.focus {
	case focusCodec:
		switch msg.String() {
		case "left", "h":
			m.codecIdx = (m.codecIdx - 1 + len(m.codecs)) % len(m.codecs)
		case "right", "l", " ":
			m.codecIdx = (m.codecIdx + 1) % len(m.codecs)
		}
		return m, nil
	case focusURL:
		before := m.url.Value()
		var cmd tea.Cmd
		m.url, cmd = m.url.Update(msg)
		if m.url.Value() == before {
			return m, cmd
		}
		m.debounceSeq++
		m.track, m.resolveErr = nil, nil
		seq := m.debounceSeq
		return m, tea.Batch(cmd, tea.Tick(debounceDelay, func(time.Time) tea.Msg {
			return debounceMsg{seq: seq}
		}))
	case focusFilename:
		var cmd tea.Cmd
		m.filename, cmd = m.filename.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleEvent(msg eventMsg) (tea.Model, tea.Cmd) {
	if !msg.ok {
		if m.downloading {
			m.finish("Download cancelled", true)
		}
		return m, nil
	}

	var cmd tea.Cmd
	switch ev := msg.event.(type) {
	case audio.StageEvent:
		m.stage = ev.Message
	case audio.ProgressEvent:
		if ev.HasTotal() {
			m.total = ev.Total
		}
		if ev.HasCurrent() {
			m.current = ev.Current
		}
		if m.total > 0 {
			cmd = m.bar.SetPercent(float64(m.current) / float64(m.total))
		}
	case audio.DoneEvent:
		if ev.Err != nil {
			m.finish("Error: "+ev.Err.Error(), true)
		} else {
			m.finish("Saved to "+ev.Path, false)
		}
		return m, cmd
	}
	return m, tea.Batch(cmd, waitForEvent(m.events))
}

func (m *Model) finish(result string, failed bool) {
	m.downloading = false
	m.result = result
	m.failed = failed
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.events = nil
}

// Run starts the TUI and blocks until it exits. The returned program can
// receive CredentialsChangedMsg through Send.
func Run(ctx context.Context, svc *downloader.Service, defaultCodec codec.Codec, ready func(*tea.Program)) error {
	p := tea.NewProgram(New(ctx, svc, defaultCodec), tea.WithAltScreen(), tea.WithContext(ctx))
	if ready != nil {
		ready(p)
	}
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) {
		return nil
	}
	return err
}
