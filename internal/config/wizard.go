package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/manifoldco/promptui"
)

// RunWizard runs an interactive configuration wizard and returns the
// resulting Config. It also saves the config to path.
func RunWizard(path string) (*Config, error) {
	fmt.Println("Welcome to devcompass! Let's point it at your analysis backend.")
	fmt.Println()

	defaults := DefaultConfig()

	// 1. Backend URL.
	apiPrompt := promptui.Prompt{
		Label:   "Backend API URL",
		Default: defaults.APIURL,
		Validate: func(s string) error {
			u, err := url.Parse(strings.TrimSpace(s))
			if err != nil || u.Scheme == "" || u.Host == "" {
				return fmt.Errorf("enter an absolute URL such as http://127.0.0.1:8000/api")
			}
			return nil
		},
	}
	apiURL, err := apiPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("api url: %w", err)
	}

	// 2. Front-end port.
	portPrompt := promptui.Prompt{
		Label:    "Port for the web front-end",
		Default:  strconv.Itoa(defaults.Port),
		Validate: validateInt(1, 65535),
	}
	portStr, err := portPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("port: %w", err)
	}
	port, _ := strconv.Atoi(portStr)

	// 3. Failure policy for status polling.
	retryPrompt := promptui.Select{
		Label: "When a status check fails",
		Items: []string{
			"fail fast  - abort the job on the first failed check",
			"retry      - tolerate up to 3 consecutive failed checks",
		},
	}
	retryIdx, _, err := retryPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("retry policy: %w", err)
	}
	retries := 0
	if retryIdx == 1 {
		retries = 3
	}

	// 4. Data directory.
	dataPrompt := promptui.Prompt{
		Label:   "Directory for local state",
		Default: defaults.DataDir,
	}
	dataDir, err := dataPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("data dir: %w", err)
	}

	cfg := DefaultConfig()
	cfg.APIURL = strings.TrimRight(strings.TrimSpace(apiURL), "/")
	cfg.Port = port
	cfg.MaxPollRetries = retries
	cfg.DataDir = dataDir

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := cfg.Save(path); err != nil {
		return nil, fmt.Errorf("saving config: %w", err)
	}

	fmt.Printf("\nConfiguration saved to %s\n", path)
	return cfg, nil
}

func validateInt(lo, hi int) promptui.ValidateFunc {
	return func(s string) error {
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return fmt.Errorf("not a number")
		}
		if n < lo || n > hi {
			return fmt.Errorf("must be between %d and %d", lo, hi)
		}
		return nil
	}
}
