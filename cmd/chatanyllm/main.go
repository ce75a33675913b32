// Command chatanyllm is a terminal chat client over the chatanyllm core:
// pick a provider, converse, regenerate answers, all conversations stored
// locally.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	// Ensure API keys are loaded
	_ "github.com/joho/godotenv/autoload"

	"github.com/charmbracelet/glamour"
	"github.com/chatanyllm/chatanyllm"
	"github.com/chatanyllm/chatanyllm/completion"
	"github.com/chatanyllm/chatanyllm/config"
	"github.com/chatanyllm/chatanyllm/messages"
	"github.com/chatanyllm/chatanyllm/pkg/slogx"
	"github.com/chatanyllm/chatanyllm/pkg/stdx"
	"github.com/chatanyllm/chatanyllm/provider"
	"github.com/chatanyllm/chatanyllm/store"
	"github.com/fatih/color"
	"github.com/phsym/zeroslog"
	"github.com/rs/zerolog"
)

var log zerolog.Logger

func init() {
	output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Stamp}
	log = zerolog.New(output).With().Timestamp().Logger()
	slog.SetDefault(slog.New(
		zeroslog.NewHandler(log, &zeroslog.HandlerOptions{Level: slog.LevelWarn}),
	))
}

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("chatanyllm")
	}
}

func run() error {
	home, _ := os.UserHomeDir()
	configPath := flag.String("config", filepath.Join(home, config.DefaultPath), "config file")
	providerFlag := flag.String("provider", "", "provider for new conversations")
	modelFlag := flag.String("model", "", "model for new conversations")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *providerFlag != "" {
		cfg.DefaultProvider = *providerFlag
	}
	if *modelFlag != "" {
		cfg.DefaultModel = *modelFlag
	}

	ctx := context.Background()

	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer st.Close()
	if err := seedCredentials(ctx, cfg, st); err != nil {
		return err
	}

	client, err := completion.New(
		completion.WithTimeout(time.Duration(cfg.RequestTimeoutSecs) * time.Second),
	)
	if err != nil {
		return err
	}

	console := newConsole()

	mgr, err := chatanyllm.New(
		chatanyllm.WithStore(store.Store(st)),
		chatanyllm.WithCompleter(chatanyllm.Completer(client)),
		chatanyllm.WithHook(chatanyllm.Hook(console)),
		chatanyllm.WithStreaming(cfg.Stream),
	)
	if err != nil {
		return err
	}

	if _, ok := mgr.CurrentConversation(); !ok {
		if _, err := mgr.CreateConversation(provider.Name(cfg.DefaultProvider), cfg.DefaultModel); err != nil {
			return err
		}
	}

	return repl(ctx, mgr, client, st, console)
}

// seedCredentials pushes keys and endpoints from config/env into the store,
// where the manager reads them at request time.
func seedCredentials(ctx context.Context, cfg config.Config, st store.Store) error {
	for _, name := range provider.Names() {
		if key := cfg.APIKey(name); key != "" {
			if err := st.SetAPIKey(ctx, name, key); err != nil {
				return err
			}
		}
		if url := cfg.Endpoint(name); url != "" {
			if err := st.SetEndpoint(ctx, name, url); err != nil {
				return err
			}
		}
	}
	return nil
}

func repl(ctx context.Context, mgr *chatanyllm.Manager, client *completion.Client, st store.Store, console *consoleHook) error {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Split(bufio.ScanLines)

	fmt.Println("chatanyllm (/help for commands, exit to quit)")
	for {
		conv, _ := mgr.CurrentConversation()
		fmt.Printf("%s (%s): ", color.CyanString("You"), conv.ModelID)
		if !scanner.Scan() {
			fmt.Println("Exiting...")
			return scanner.Err()
		}
		input := strings.TrimSpace(scanner.Text())
		switch {
		case input == "":
			continue
		case strings.EqualFold(input, "exit"):
			return nil
		case strings.HasPrefix(input, "/"):
			if err := command(ctx, mgr, client, st, input); err != nil {
				fmt.Println(color.RedString("error: %v", err))
			}
			continue
		}

		console.reset()
		if err := mgr.SendMessage(ctx, input); err != nil {
			fmt.Println(color.RedString("error: %v", err))
		}
	}
}

func command(ctx context.Context, mgr *chatanyllm.Manager, client *completion.Client, st store.Store, input string) error {
	cmd, arg, _ := strings.Cut(input, " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "/help":
		fmt.Println(`/new [provider] [model]  start a conversation
/list                    list conversations
/switch <n>              switch to conversation n from /list
/title <text>            rename the current conversation
/regen                   regenerate the last answer
/test <provider>         verify the stored API key
/delete                  delete the current conversation`)
	case "/new":
		conv, _ := mgr.CurrentConversation()
		name, model := provider.Name(conv.Provider), ""
		fields := strings.Fields(arg)
		if len(fields) > 0 {
			name = provider.Name(fields[0])
		}
		if len(fields) > 1 {
			model = fields[1]
		}
		created, err := mgr.CreateConversation(name, model)
		if err != nil {
			return err
		}
		fmt.Printf("new conversation on %s/%s\n", created.Provider, created.ModelID)
	case "/list":
		for i, conv := range mgr.Conversations() {
			marker := " "
			if cur, ok := mgr.CurrentConversation(); ok && cur.ID == conv.ID {
				marker = "*"
			}
			fmt.Printf("%s %2d  %-34s %s/%s\n", marker, i+1, conv.Title, conv.Provider, conv.ModelID)
		}
	case "/switch":
		n, err := strconv.Atoi(arg)
		if err != nil {
			return fmt.Errorf("usage: /switch <n>")
		}
		all := mgr.Conversations()
		if n < 1 || n > len(all) {
			return fmt.Errorf("no conversation %d", n)
		}
		return mgr.SelectConversation(all[n-1].ID)
	case "/title":
		conv, ok := mgr.CurrentConversation()
		if !ok {
			return chatanyllm.ErrNoConversation
		}
		return mgr.UpdateTitle(ctx, conv.ID, arg)
	case "/regen":
		conv, ok := mgr.CurrentConversation()
		if !ok {
			return chatanyllm.ErrNoConversation
		}
		for i := len(conv.Messages) - 1; i >= 0; i-- {
			if conv.Messages[i].Role == messages.RoleAssistant {
				return mgr.Regenerate(ctx, conv.Messages[i].ID)
			}
		}
		return fmt.Errorf("nothing to regenerate")
	case "/test":
		if arg == "" {
			return fmt.Errorf("usage: /test <provider>")
		}
		name := provider.Name(arg)
		key, err := st.APIKey(ctx, name)
		if err != nil {
			return err
		}
		endpoint, err := st.Endpoint(ctx, name)
		if err != nil {
			return err
		}
		if err := client.TestConnection(ctx, name, key, endpoint); err != nil {
			return err
		}
		fmt.Println(color.GreenString("connection ok"))
	case "/delete":
		conv, ok := mgr.CurrentConversation()
		if !ok {
			return chatanyllm.ErrNoConversation
		}
		return mgr.DeleteConversation(ctx, conv.ID)
	default:
		return fmt.Errorf("unknown command %s", cmd)
	}
	return nil
}

// consoleHook renders chat activity: raw deltas while streaming, a glamour
// pass over the final markdown once complete.
type consoleHook struct {
	chatanyllm.NoopHook
	glam      *glamour.TermRenderer
	streamed  bool
	lastChunk string
}

func newConsole() *consoleHook {
	return &consoleHook{
		glam: stdx.Must(glamour.NewTermRenderer(glamour.WithAutoStyle())),
	}
}

func (c *consoleHook) reset() {
	c.streamed = false
	c.lastChunk = ""
}

func (c *consoleHook) OnAssistantChunk(_ context.Context, _ string, msg messages.Message) {
	if !c.streamed {
		c.streamed = true
		fmt.Print(color.MagentaString("Assistant") + ": ")
	}
	// Chunks carry accumulated content; print only the new tail.
	fmt.Print(strings.TrimPrefix(msg.Content, c.lastChunk))
	c.lastChunk = msg.Content
}

func (c *consoleHook) OnAssistantMessage(_ context.Context, _ string, msg messages.Message) {
	if c.streamed {
		fmt.Println()
		return
	}
	out, err := c.glam.Render(msg.Content)
	if err != nil {
		slog.Debug("render markdown", slogx.Error(err))
		out = msg.Content
	}
	fmt.Print(color.MagentaString("Assistant") + ": ")
	fmt.Println(out)
}

func (c *consoleHook) OnError(_ context.Context, _ string, err error) {
	fmt.Println()
	fmt.Println(color.RedString("generation failed: %v", err))
}
