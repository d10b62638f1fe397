package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "secretshare",
	Short: "secretshare CLI",
	Long:  "A CLI for creating and revealing one-time secrets.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		loadConfig()
		// Env var overrides are applied in newClient()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", "table", "Output format: table, json, raw")
	rootCmd.PersistentFlags().StringVar(&outputField, "field", "", "Print only this field (use with -format=raw)")

	rootCmd.AddCommand(createCmd())
	rootCmd.AddCommand(resolveCmd())
	rootCmd.AddCommand(revealCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(configCmd())
}

// --- create ---

func createCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create [content]",
		Short: "Create a one-time secret",
		Long:  "Create a one-time secret from the argument, a file, or stdin, and print its share link.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, _ := cmd.Flags().GetString("password")
			ttl, _ := cmd.Flags().GetInt("ttl")
			file, _ := cmd.Flags().GetString("file")

			var content string
			switch {
			case file != "":
				data, err := os.ReadFile(file)
				if err != nil {
					printError(err.Error())
					return nil
				}
				content = string(data)
			case len(args) == 1:
				content = args[0]
			default:
				data, err := io.ReadAll(os.Stdin)
				if err != nil {
					printError(err.Error())
					return nil
				}
				content = strings.TrimRight(string(data), "\n")
			}

			body := map[string]any{"content": content}
			if password != "" {
				body["password"] = password
			}
			if ttl > 0 {
				body["expires_in_minutes"] = ttl
			}

			client := newClient()
			result, err := client.post("/v1/secrets", body)
			if err != nil {
				printError(err.Error())
				return nil
			}
			if d, ok := result["data"].(map[string]any); ok {
				printResult(d)
				return nil
			}
			printResult(result)
			return nil
		},
	}
	cmd.Flags().String("password", "", "Password required to reveal the secret")
	cmd.Flags().Int("ttl", 0, "Lifetime in minutes (default: server default)")
	cmd.Flags().String("file", "", "Read content from a file instead of args/stdin")
	return cmd
}

// --- resolve ---

func resolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <token>",
		Short: "Check a share link without consuming it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newClient()
			result, err := client.get(resolvePath(args[0]))
			if err != nil {
				printError(err.Error())
				return nil
			}
			if d, ok := result["data"].(map[string]any); ok {
				printResult(d)
				return nil
			}
			printResult(result)
			return nil
		},
	}
}

// --- reveal ---

func revealCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reveal <token>",
		Short: "Reveal a secret (destroys it)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, _ := cmd.Flags().GetString("password")

			body := map[string]any{"token": args[0]}
			if password != "" {
				body["password"] = password
			}

			client := newClient()
			result, err := client.post("/v1/secrets/reveal", body)
			if err != nil {
				printError(err.Error())
				return nil
			}
			if d, ok := result["data"].(map[string]any); ok {
				if content, ok := d["content"].(string); ok && outputFormat == "table" {
					fmt.Println(content)
					return nil
				}
				printResult(d)
				return nil
			}
			printResult(result)
			return nil
		},
	}
	cmd.Flags().String("password", "", "Password for the secret, if one was set")
	return cmd
}

// --- status ---

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check server health",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newClient()
			result, err := client.get("/v1/sys/health")
			if err != nil {
				printError(err.Error())
				return nil
			}
			printResult(result)
			return nil
		},
	}
}

// --- config ---

func configCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "config", Short: "Manage CLI configuration"}

	setAddrCmd := &cobra.Command{
		Use:   "set-address <url>",
		Short: "Set the server address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.Address = args[0]
			if err := saveConfig(); err != nil {
				printError(err.Error())
				return nil
			}
			printSuccess("Success! Address saved to " + configPath())
			return nil
		},
	}

	cmd.AddCommand(setAddrCmd)
	return cmd
}
