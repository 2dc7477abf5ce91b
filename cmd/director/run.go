package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"director/internal/chat"
	"director/internal/config"
	"director/internal/director"
	"director/internal/llm"
	"director/internal/preset"
	"director/internal/prompt"
	"director/internal/settings"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the interactive chat session",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSession()
	},
}

// app bundles the wired session for the interactive loop.
type app struct {
	settings *settings.Store
	presets  *preset.Store
	store    *chat.SQLiteStore
	session  *chat.Session
	engine   *director.Engine
	lines    chan string
	router   *inputRouter
}

func runSession() error {
	a, err := wireApp()
	if err != nil {
		return err
	}
	defer a.close()

	fmt.Println(headerStyle.Render("director — type /help for commands"))
	printTranscript(a.store)

	// One reader goroutine feeds both the chat loop and the reviewer.
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			a.lines <- scanner.Text()
		}
		close(a.lines)
	}()

	for line := range a.lines {
		// A pending review owns the input stream.
		if a.router.route(line) {
			continue
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			if quit := a.handleCommand(line); quit {
				return nil
			}
			continue
		}
		a.sendMessage(line)
	}
	return nil
}

func wireApp() (*app, error) {
	store, err := settings.Open(config.Path(workspace))
	if err != nil {
		return nil, err
	}
	presets, err := preset.Open(filepath.Join(stateDir(), "presets.yaml"))
	if err != nil {
		return nil, err
	}
	chatStore, err := chat.OpenSQLiteStore(filepath.Join(stateDir(), "chat.db"))
	if err != nil {
		return nil, err
	}

	client := llm.NewClient()
	a := &app{
		settings: store,
		presets:  presets,
		store:    chatStore,
		lines:    make(chan string),
		router:   &inputRouter{},
	}

	a.session = chat.NewSession(chatStore, client, func() chat.SessionConfig {
		cfg := store.Get()
		gen := guidanceConfig(&cfg)
		if cfg.Chat.Model != "" {
			gen.Model = cfg.Chat.Model
		}
		gen.Stream = cfg.LLM.Stream
		return chat.SessionConfig{
			UserName:      cfg.Chat.UserName,
			AssistantName: cfg.Chat.AssistantName,
			SystemPrompt:  cfg.Chat.SystemPrompt,
			Generate:      gen,
		}
	})

	a.engine = director.NewEngine(director.Deps{
		Config:    func() config.Config { return store.Get() },
		Preset:    a.presets.Current,
		Assembler: &prompt.Assembler{},
		Client:    client,
		Env: func(round int) (prompt.Env, error) {
			cfg := store.Get()
			turns, err := chatStore.Recent(0)
			if err != nil {
				return prompt.Env{}, err
			}
			return prompt.Env{
				Turns:         turns,
				HistoryLimit:  cfg.Director.ContextLength,
				Outline:       cfg.Director.Outline.Text,
				OutlineRounds: cfg.Director.Outline.PromptRounds,
			}, nil
		},
		Inject:     a.injectDirection,
		AwaitReady: a.session.AwaitReady,
		Review:     &stdinReviewer{router: a.router},
		OnStateChange: func(s director.State) {
			if s.LastError != "" {
				fmt.Println(errorStyle.Render("director stopped: " + s.LastError))
			}
		},
	})

	a.session.OnAssistantTurn = a.engine.OnTurnComplete

	if err := store.Watch(); err != nil {
		logger.Warn("settings watcher unavailable", zap.Error(err))
	}
	return a, nil
}

func (a *app) close() {
	a.engine.Stop()
	if err := a.settings.Close(); err != nil {
		logger.Warn("failed to flush settings", zap.Error(err))
	}
	a.store.Close()
}

// injectDirection shows the direction in the transcript and hands it to the
// session.
func (a *app) injectDirection(text string) {
	cfg := a.settings.Get()
	fmt.Printf("%s %s\n", userStyle.Render(cfg.Chat.UserName+" (director):"), text)
	a.session.Inject(text)
}

// sendMessage sends a user line and streams the reply.
func (a *app) sendMessage(text string) {
	cfg := a.settings.Get()
	fmt.Printf("%s ", assistantStyle.Render(cfg.Chat.AssistantName+":"))

	streamed := false
	_, err := a.session.Send(rootCmd.Context(), text, func(delta string) {
		streamed = true
		fmt.Print(delta)
	})
	if err != nil {
		fmt.Println(errorStyle.Render(llm.Summary(err)))
		return
	}
	if streamed {
		fmt.Println()
		return
	}
	// Non-streaming transports print the full reply at once.
	turns, _ := a.store.Recent(1)
	if len(turns) == 1 {
		fmt.Println(turns[0].Text)
	}
}

// handleCommand executes a slash command; returns true to quit.
func (a *app) handleCommand(line string) bool {
	fields := strings.Fields(line)
	cmd, rest := fields[0], strings.TrimSpace(strings.TrimPrefix(line, fields[0]))

	switch cmd {
	case "/quit", "/exit":
		return true

	case "/help":
		fmt.Println(noticeStyle.Render(`/start          begin directing
/stop           stop directing
/status         show round state
/rounds N       set total rounds
/outline TEXT   set the plot outline
/preset NAME    select a preset
/review on|off  toggle review mode
/quit           exit`))

	case "/start":
		a.settings.Update(func(c *config.Config) { c.Director.Enabled = true })
		if err := a.engine.Start(); err != nil {
			fmt.Println(errorStyle.Render(err.Error()))
			break
		}
		fmt.Println(statusStyle.Render("directing started"))

	case "/stop":
		rounds := a.engine.Stop()
		fmt.Println(statusStyle.Render(fmt.Sprintf("directing stopped after %d rounds", rounds)))

	case "/status":
		s := a.engine.State()
		fmt.Println(statusStyle.Render(fmt.Sprintf(
			"running=%v round=%d/%d generating=%v", s.Running, s.CurrentRound, s.TotalRounds, s.Generating)))

	case "/rounds":
		n, err := strconv.Atoi(rest)
		if err != nil || n <= 0 {
			fmt.Println(errorStyle.Render("usage: /rounds N"))
			break
		}
		a.settings.Update(func(c *config.Config) { c.Director.TotalRounds = n })
		fmt.Println(statusStyle.Render(fmt.Sprintf("total rounds set to %d", n)))

	case "/outline":
		a.settings.Update(func(c *config.Config) { c.Director.Outline.Text = rest })
		fmt.Println(statusStyle.Render("outline updated"))

	case "/preset":
		if rest == "" {
			fmt.Println(statusStyle.Render("presets: " + strings.Join(a.presets.Names(), ", ")))
			break
		}
		if err := a.presets.Select(rest); err != nil {
			fmt.Println(errorStyle.Render(err.Error()))
			break
		}
		fmt.Println(statusStyle.Render("preset selected: " + rest))

	case "/review":
		on := rest == "on"
		a.settings.Update(func(c *config.Config) { c.Director.ReviewMode = on })
		fmt.Println(statusStyle.Render(fmt.Sprintf("review mode: %v", on)))

	default:
		fmt.Println(errorStyle.Render("unknown command: " + cmd))
	}
	return false
}

// printTranscript replays the stored conversation.
func printTranscript(store chat.Store) {
	turns, err := store.Recent(20)
	if err != nil || len(turns) == 0 {
		return
	}
	for _, t := range turns {
		switch {
		case t.IsSystemNotice:
			fmt.Println(noticeStyle.Render("· " + t.Text))
		case t.IsUserAuthored:
			fmt.Printf("%s %s\n", userStyle.Render(t.Author+":"), t.Text)
		default:
			fmt.Printf("%s %s\n", assistantStyle.Render(t.Author+":"), t.Text)
		}
	}
	fmt.Println(noticeStyle.Render(fmt.Sprintf("· resumed at %s", time.Now().Format("15:04"))))
}

// guidanceConfig maps config onto a client call config.
func guidanceConfig(cfg *config.Config) llm.GenerateConfig {
	return llm.GenerateConfig{
		Transport:   llm.Transport(cfg.LLM.Transport),
		Vendor:      llm.Vendor(cfg.LLM.Vendor),
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Endpoint:    cfg.LLM.Endpoint,
		APIKey:      cfg.LLM.APIKey,
		Timeout:     cfg.LLMTimeout(),
	}
}
