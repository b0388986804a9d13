package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"algchat/internal/api"
	"algchat/internal/config"
	"algchat/internal/state"
	"algchat/internal/tui"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

const version = "0.1.0"

func main() {
	var configPath string
	var serverURL string

	root := &cobra.Command{
		Use:     "algchat",
		Short:   "Terminal client for the algebra tutoring assistant",
		Long:    "algchat is a terminal client for the algebra tutoring assistant.\n\nRun without arguments for the interactive chat UI.",
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath, serverURL)
			if err != nil {
				return err
			}

			level := slog.LevelInfo
			if cfg.Debug {
				level = slog.LevelDebug
			}
			logger, closeLog := config.SetupLogger(cfg.LogFile, level, false)
			defer closeLog()

			store, err := state.Open(cfg.DataDir, logger)
			if err != nil {
				return fmt.Errorf("opening state store: %w", err)
			}
			defer store.Close()

			client := api.NewClient(cfg.ServerURL)
			logger.Info("starting", "version", version, "server", cfg.ServerURL)

			p := tea.NewProgram(tui.New(client, store, logger), tea.WithAltScreen(), tea.WithMouseCellMotion())
			if _, err := p.Run(); err != nil {
				return fmt.Errorf("running UI: %w", err)
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: "+config.DefaultConfigPath()+")")
	root.PersistentFlags().StringVar(&serverURL, "server", "", "backend base URL (overrides config)")

	root.AddCommand(healthCmd(&configPath, &serverURL))
	root.AddCommand(conversationsCmd(&configPath, &serverURL))
	root.AddCommand(searchCmd(&configPath, &serverURL))
	root.AddCommand(renameCmd(&configPath, &serverURL))

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	const limit = 100
	if r := []rune(s); len(r) > limit {
		return string(r[:limit]) + "…"
	}
	return s
}

func loadConfig(path, serverURL string) (config.Config, error) {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return cfg, fmt.Errorf("loading config: %w", err)
	}
	if serverURL != "" {
		cfg.ServerURL = serverURL
	}
	return cfg, nil
}

func newClient(path, serverURL string) (*api.Client, error) {
	cfg, err := loadConfig(path, serverURL)
	if err != nil {
		return nil, err
	}
	return api.NewClient(cfg.ServerURL), nil
}

func healthCmd(configPath, serverURL *string) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check backend availability",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(*configPath, *serverURL)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			hs, err := client.Health(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("%s: %s\n", client.BaseURL, hs.Status)
			return nil
		},
	}
}

func conversationsCmd(configPath, serverURL *string) *cobra.Command {
	return &cobra.Command{
		Use:   "conversations",
		Short: "List conversations",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(*configPath, *serverURL)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			convs, err := client.ListConversations(ctx)
			if err != nil {
				return err
			}
			for _, c := range convs {
				updated := api.ParseTimestamp(c.UpdatedAt)
				stamp := ""
				if !updated.IsZero() {
					stamp = updated.Local().Format("2006-01-02 15:04")
				}
				fmt.Printf("%s  %-16s  %s\n", c.ID, stamp, c.Title)
			}
			return nil
		},
	}
}

func renameCmd(configPath, serverURL *string) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <id> <title>",
		Short: "Rename a conversation",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(*configPath, *serverURL)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			return client.RenameConversation(ctx, args[0], strings.Join(args[1:], " "))
		},
	}
}

func searchCmd(configPath, serverURL *string) *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Search conversation history",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(*configPath, *serverURL)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			query := args[0]
			for _, a := range args[1:] {
				query += " " + a
			}
			results, err := client.Search(ctx, query)
			if err != nil {
				return err
			}
			if len(results) == 0 {
				fmt.Println("no matches")
				return nil
			}
			for _, r := range results {
				switch r.Type {
				case "conversation":
					fmt.Printf("%s  %s\n", r.ID, r.Title)
				default:
					fmt.Printf("%s  %s\n", r.ConversationID, firstLine(r.Content))
				}
			}
			return nil
		},
	}
}
