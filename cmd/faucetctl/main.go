package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ligun0805/faucet-sender/internal/app"
	"github.com/ligun0805/faucet-sender/internal/config"
)

const FlagConfig = "config"

var (
	configPath string
	noColor    bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "faucetctl",
		Short: "Faucet collector and native token mass sender",
		Long: `Collects faucet drops through a headless browser and sends small native
transfers from funded wallets to a list of recipients.

Without a subcommand an interactive menu is shown.

Configuration comes from config.json / config.yaml (or --config), .env,
.env.local and the environment, in that order of increasing priority.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMenu(newApp())
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, FlagConfig, "c", "", "Path to config file (json, yaml or toml)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored console output")

	for _, act := range newApp().Actions() {
		rootCmd.AddCommand(actionCmd(act.Key, act.Title))
	}

	if err := rootCmd.Execute(); err != nil {
		die(err.Error())
	}
}

func newApp() *app.App {
	a := app.New(configPath, os.Stderr, os.Stdout)
	a.NoColor = noColor
	if noColor {
		color.NoColor = true
	}
	a.PromptSecret = readSecret
	return a
}

// actionCmd resolves the action at run time so --config is already parsed.
func actionCmd(key, title string) *cobra.Command {
	return &cobra.Command{
		Use:   key,
		Short: title,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, act := range newApp().Actions() {
				if act.Key == key {
					return runAction(act)
				}
			}
			return fmt.Errorf("unknown action %q", key)
		},
	}
}

// runAction runs act with a context cancelled by Ctrl+C / SIGTERM.
func runAction(act app.Action) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	err := act.Run(ctx)
	if errors.Is(err, context.Canceled) {
		fmt.Println(pink("Interrupted."))
		return nil
	}
	return err
}

func runMenu(a *app.App) error {
	actions := a.Actions()
	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Println()
		fmt.Println(blue("=== faucet-sender ==="))
		for i, act := range actions {
			fmt.Printf("  %s. %s\n", blue(strconv.Itoa(i+1)), act.Title)
		}
		fmt.Printf("  %s. Exit\n", blue("0"))

		choice := readLine(reader, "Select an action: ")
		if choice == "0" || choice == "q" || choice == "exit" {
			return nil
		}
		n, err := strconv.Atoi(choice)
		if err != nil || n < 1 || n > len(actions) {
			fmt.Println(red("Unknown choice:"), choice)
			continue
		}
		act := actions[n-1]
		fmt.Println(pink("> " + act.Title))
		if err := runAction(act); err != nil {
			fmt.Println(red("Failed:"), err)
			if errors.Is(err, config.ErrInvalid) {
				fmt.Println("Fix the configuration and try again.")
			}
			continue
		}
		fmt.Println(green("Done."))
	}
}
