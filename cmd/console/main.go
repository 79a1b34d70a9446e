package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"github.com/jwebster45206/heartline/pkg/storage"
)

type ConsoleConfig struct {
	APIBaseURL string        `env:"API_BASE_URL" envDefault:"http://localhost:8080"`
	Timeout    time.Duration `env:"CONSOLE_TIMEOUT" envDefault:"30s"`
	Profile    string        `env:"PROFILE" envDefault:"default"`
	PlayerName string        `env:"PLAYER_NAME"`
}

func loadConfig() (*ConsoleConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	cfg, err := env.ParseAs[ConsoleConfig]()
	if err != nil {
		return nil, fmt.Errorf("failed to parse console config: %w", err)
	}
	return &cfg, nil
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	api := NewAPIClient(&http.Client{Timeout: cfg.Timeout}, cfg.APIBaseURL)

	if !api.testConnection() {
		fmt.Fprintf(os.Stderr, "Could not connect to API. Please ensure the API is running.\nTry: docker-compose up -d\n")
		os.Exit(1)
	}

	first, err := api.createSession(cfg.Profile, cfg.PlayerName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start a game: %v\n", err)
		os.Exit(1)
	}

	p := tea.NewProgram(NewConsoleUI(cfg, api, first),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion())

	ctx, cancel := context.WithCancel(context.Background())
	go forwardNotifications(ctx, api, p)

	_, runErr := p.Run()
	cancel()

	if _, err := api.save(storage.AutosaveSlot, "Autosave"); err != nil {
		fmt.Fprintf(os.Stderr, "Autosave failed: %v\n", err)
	}
	if err := api.endSession(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to end session: %v\n", err)
	}

	if runErr != nil {
		fmt.Fprintf(os.Stderr, "Error running program: %v\n", runErr)
		os.Exit(1)
	}
}

// forwardNotifications relays pushed session events to the UI. Without Redis
// the API has no event stream and this returns quietly.
func forwardNotifications(ctx context.Context, api *APIClient, p *tea.Program) {
	events := make(chan SSEEvent, 16)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-events:
				p.Send(notificationMsg{event: ev})
			}
		}
	}()
	_ = api.listenToSSE(ctx, events)
}
