package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/varsilias/oracle-chat/internal/consumer"
	"github.com/varsilias/oracle-chat/internal/logging"
	"github.com/varsilias/oracle-chat/internal/prompt"
	"github.com/varsilias/oracle-chat/internal/usage"
)

var (
	chatURL      string
	chatMarkdown bool
	chatHistory  string
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	oracleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with a running relay from the terminal",
	Long: `Chat opens an interactive session against a running "oracle serve".
Replies stream in as they arrive. Commands: /usage, /clear, /quit.`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVar(&chatURL, "url", "http://localhost:8080", "relay base URL")
	chatCmd.Flags().BoolVar(&chatMarkdown, "markdown", false, "render each finished reply as markdown instead of streaming raw text")
	chatCmd.Flags().StringVar(&chatHistory, "history", defaultHistoryFile(), "input history file")
}

func defaultHistoryFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "oracle", "chat_history")
}

func runChat(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	logger := logging.NewWriter(os.Stderr, cfg.Log.Level, cfg.Log.JSON)
	client := consumer.NewClient(chatURL, &http.Client{}, logger)

	var renderer *glamour.TermRenderer
	if chatMarkdown {
		r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(80))
		if err != nil {
			logger.Warn("markdown renderer unavailable, streaming raw text", "err", err)
		} else {
			renderer = r
		}
	}

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)
	loadHistory(line, chatHistory)
	defer saveHistory(line, chatHistory)

	fmt.Fprintln(out, titleStyle.Render(prompt.DefaultName)+mutedStyle.Render("  connected to "+chatURL))

	var state consumer.State
	for {
		input, err := line.Prompt("you> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Fprintln(out)
				return nil
			}
			return err
		}
		if strings.TrimSpace(input) == "" {
			continue
		}
		line.AppendHistory(input)

		switch strings.TrimSpace(input) {
		case "/quit", "/exit":
			return nil
		case "/usage":
			fmt.Fprintln(out, usageBar(state.Usage, 30))
			continue
		case "/clear":
			state = consumer.State{}
			fmt.Fprintln(out, mutedStyle.Render("conversation cleared"))
			continue
		}

		state = chatTurn(cmd.Context(), out, client, renderer, state, input)
		fmt.Fprintln(out, usageBar(state.Usage, 30))
	}
}

// chatTurn sends one message; Ctrl+C cancels the reply in flight.
func chatTurn(parent context.Context, out io.Writer, client *consumer.Client, renderer *glamour.TermRenderer, state consumer.State, input string) consumer.State {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt)
	defer stop()

	fmt.Fprintln(out, oracleStyle.Render(prompt.DefaultName+":"))
	printed := 0
	onDraft := func(s consumer.State) {
		if renderer != nil {
			return
		}
		fmt.Fprint(out, s.Draft[printed:])
		printed = len(s.Draft)
	}

	next, err := client.Send(ctx, state, input, onDraft)
	if errors.Is(err, consumer.ErrInputIgnored) {
		return next
	}
	reply := next.History[len(next.History)-1].Content
	switch {
	case err != nil:
		if printed > 0 {
			fmt.Fprintln(out)
		}
		fmt.Fprintln(out, errorStyle.Render(reply))
	case renderer != nil:
		rendered, rerr := renderer.Render(reply)
		if rerr != nil {
			rendered = reply + "\n"
		}
		fmt.Fprint(out, rendered)
	default:
		fmt.Fprintln(out)
	}
	return next
}

// usageBar is the terminal rendition of the web context bar.
func usageBar(s usage.Snapshot, width int) string {
	pct := usage.ContextPercentage(s.Tokens)
	filled := int(pct / 100 * float64(width))
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)

	color := levelColors[usage.LevelFor(pct)]
	style := lipgloss.NewStyle().Foreground(color)
	return fmt.Sprintf("%s %s  %s  %s",
		style.Render(bar),
		style.Render(fmt.Sprintf("%s / %s tokens", usage.FormatTokens(s.Tokens), usage.FormatTokens(usage.ContextLimit))),
		mutedStyle.Render(usage.FormatCost(s.Cost)),
		mutedStyle.Render(fmt.Sprintf("%.1f%% context used", pct)),
	)
}

var levelColors = map[usage.Level]lipgloss.Color{
	usage.LevelOK:       lipgloss.Color("42"),
	usage.LevelElevated: lipgloss.Color("220"),
	usage.LevelHigh:     lipgloss.Color("208"),
	usage.LevelCritical: lipgloss.Color("196"),
}

func loadHistory(line *liner.State, path string) {
	if f, err := os.Open(path); err == nil {
		_, _ = line.ReadHistory(f)
		f.Close()
	}
}

func saveHistory(line *liner.State, path string) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return
	}
	defer f.Close()
	_, _ = line.WriteHistory(f)
}
