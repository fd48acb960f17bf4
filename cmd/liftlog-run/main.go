package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	serverURL := flag.String("server", "http://localhost:8080", "LiftLog server URL")
	apiKey := flag.String("api-key", os.Getenv("LIFTLOG_AUTH_API_KEY"), "API key for session endpoints")
	templatePath := flag.String("template", "", "path to a workout template JSON file to start")
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *version {
		fmt.Println("liftlog-run", Version)
		return
	}

	var template *StartPayload
	if *templatePath != "" {
		tpl, err := loadTemplate(*templatePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		template = tpl
	}

	client := NewClient(*serverURL, *apiKey)
	m := NewModel(client, template)

	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadTemplate reads a start payload from disk. The file holds the
// same JSON body the start endpoint accepts: name, blocks, and an
// optional template rest override.
func loadTemplate(path string) (*StartPayload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading template: %w", err)
	}
	var p StartPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parsing template %s: %w", path, err)
	}
	if p.Name == "" {
		return nil, fmt.Errorf("template %s: name is required", path)
	}
	if len(p.Blocks) == 0 {
		return nil, fmt.Errorf("template %s: at least one block is required", path)
	}
	return &p, nil
}
