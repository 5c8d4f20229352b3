package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/genbi-core/genbi-mcp/internal/infrastructure/mcp"
	"github.com/genbi-core/genbi-mcp/pkg/logger"
)

var (
	serverURL string
	timeout   time.Duration
	argsJSON  string
)

var rootCmd = &cobra.Command{
	Use:          "genbictl",
	Short:        "Command line client for the genbi MCP server",
	SilenceUsage: true,
}

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Inspect and call tools",
}

var toolsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the tools exposed by the server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(ctx context.Context, c *mcp.Client) error {
			tools, err := c.ListTools(ctx, timeout)
			if err != nil {
				return err
			}
			return printJSON(tools)
		})
	},
}

var toolsCallCmd = &cobra.Command{
	Use:   "call NAME",
	Short: "Call a tool by name",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var toolArgs map[string]interface{}
		if argsJSON != "" {
			if err := json.Unmarshal([]byte(argsJSON), &toolArgs); err != nil {
				return fmt.Errorf("invalid --args JSON: %w", err)
			}
		}
		return withClient(func(ctx context.Context, c *mcp.Client) error {
			result, err := c.CallTool(ctx, args[0], toolArgs, timeout)
			if err != nil {
				return err
			}
			if err := printJSON(result); err != nil {
				return err
			}
			if !result.Success {
				os.Exit(1)
			}
			return nil
		})
	},
}

var resourcesCmd = &cobra.Command{
	Use:   "resources",
	Short: "Inspect and read resources",
}

var resourcesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the resources exposed by the server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(ctx context.Context, c *mcp.Client) error {
			resources, err := c.ListResources(ctx, timeout)
			if err != nil {
				return err
			}
			return printJSON(resources)
		})
	},
}

var resourcesReadCmd = &cobra.Command{
	Use:   "read URI",
	Short: "Read a resource by URI",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(ctx context.Context, c *mcp.Client) error {
			content, err := c.ReadResource(ctx, args[0], timeout)
			if err != nil {
				return err
			}
			fmt.Print(content.Text)
			return nil
		})
	},
}

// withClient は接続・ハンドシェイク・切断を共通化する
func withClient(fn func(ctx context.Context, c *mcp.Client) error) error {
	c := mcp.NewClient(serverURL, "genbictl", timeout)
	ctx := context.Background()
	if err := c.Connect(ctx); err != nil {
		return err
	}
	defer c.Disconnect()
	return fn(ctx, c)
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "ws://127.0.0.1:8080/mcp", "MCP server URL")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "request timeout")
	toolsCallCmd.Flags().StringVar(&argsJSON, "args", "", "tool arguments as a JSON object")

	toolsCmd.AddCommand(toolsListCmd, toolsCallCmd)
	resourcesCmd.AddCommand(resourcesListCmd, resourcesReadCmd)
	rootCmd.AddCommand(toolsCmd, resourcesCmd)
}

func main() {
	// CLIからのログはエラー時のみ表示
	logger.SetLevel(logger.LevelError)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
