package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/user/credit-sentinel/pkg/adk"
	"github.com/user/credit-sentinel/pkg/config"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Interactive setup wizard",
	Run: func(cmd *cobra.Command, args []string) {
		scanner := bufio.NewScanner(os.Stdin)
		fmt.Println("Welcome to the Credit Sentinel Setup Wizard")
		fmt.Println("-------------------------------------------")

		// 1. Extraction strategy
		fmt.Println("Step 1: How should covenants be extracted?")
		fmt.Println("1. Built-in pattern rules (offline)")
		fmt.Println("2. AI model (Gemini, OpenAI or Anthropic)")
		fmt.Print("Enter number > ")
		scanner.Scan()
		if strings.TrimSpace(scanner.Text()) != "2" {
			saveStrategy(config.StrategyPattern)
			return
		}

		// 2. Select Provider
		fmt.Println("\nStep 2: Choose your AI Provider")
		fmt.Println("1. Gemini (Google)")
		fmt.Println("2. OpenAI")
		fmt.Println("3. Anthropic")
		fmt.Print("Enter number or name > ")
		scanner.Scan()
		choice := strings.ToLower(strings.TrimSpace(scanner.Text()))

		var provider string
		switch choice {
		case "1", "gemini":
			provider = "gemini"
		case "2", "openai":
			provider = "openai"
		case "3", "anthropic":
			provider = "anthropic"
		default:
			fmt.Println("Invalid choice. Aborting.")
			return
		}

		// 3. Enter API Key
		fmt.Printf("\nStep 3: Enter API Key for %s\n", provider)
		fmt.Print("> ")
		scanner.Scan()
		apiKey := strings.TrimSpace(scanner.Text())
		if apiKey == "" {
			fmt.Println("API Key cannot be empty.")
			return
		}

		// 4. Fetch Models
		fmt.Println("\nStep 4: Validating key and fetching available models...")
		ctx := context.Background()

		tempProvider, err := adk.NewProvider(ctx, provider, apiKey, "")
		if err != nil {
			fmt.Printf("Error initializing provider: %v\n", err)
			return
		}
		if c, ok := tempProvider.(io.Closer); ok {
			defer c.Close()
		}

		models, err := tempProvider.ListModels(ctx)
		var selectedModel string

		if err != nil || len(models) == 0 {
			fmt.Printf("Warning: Could not fetch models from API: %v\n", err)
			fmt.Println("Please enter model name manually (e.g., 'gemini-1.5-flash', 'gpt-4o'):")
			fmt.Print("> ")
			scanner.Scan()
			selectedModel = strings.TrimSpace(scanner.Text())
		} else {
			fmt.Printf("Successfully retrieved %d models.\n", len(models))
			for i, m := range models {
				fmt.Printf("%d. %s\n", i+1, m)
			}
			fmt.Print("Select Model (number) > ")
			scanner.Scan()
			selIdx, err := strconv.Atoi(strings.TrimSpace(scanner.Text()))
			if err != nil || selIdx < 1 || selIdx > len(models) {
				fmt.Println("Invalid selection. Using first available model.")
				selectedModel = models[0]
			} else {
				selectedModel = models[selIdx-1]
			}
		}

		// 5. Save Configuration
		fmt.Println("\nStep 5: Saving Configuration...")
		cfg, err := loadConfig()
		if err != nil {
			fmt.Printf("Error loading config: %v\n", err)
			return
		}

		cfg.SelectedProvider = provider
		cfg.SelectedModel = selectedModel
		cfg.SetAPIKey(provider, apiKey)
		cfg.Extraction.Strategy = config.StrategyModel

		if err := config.SaveConfig(cfg, ConfigPath); err != nil {
			fmt.Printf("Error saving config: %v\n", err)
			return
		}

		fmt.Println("-------------------------------------------")
		fmt.Println("Setup Complete!")
		fmt.Printf("Provider: %s\n", provider)
		fmt.Printf("Model:    %s\n", selectedModel)
		fmt.Println("You can now run 'credit-sentinel extract <agreement>'")
	},
}

func saveStrategy(strategy string) {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		return
	}
	cfg.Extraction.Strategy = strategy
	if err := config.SaveConfig(cfg, ConfigPath); err != nil {
		fmt.Printf("Error saving config: %v\n", err)
		return
	}
	fmt.Printf("Setup Complete! Extraction strategy: %s\n", strategy)
}

func init() {
	configCmd.AddCommand(setupCmd)
	rootCmd.AddCommand(&cobra.Command{
		Use:   setupCmd.Use,
		Short: setupCmd.Short,
		Run:   setupCmd.Run,
	})
}
