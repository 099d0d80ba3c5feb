package cmd

import (
	"context"
	"fmt"

	"github.com/solatis/firewrite/internal/client"
	"github.com/solatis/firewrite/internal/core/config"
	"github.com/solatis/firewrite/internal/document"
	"github.com/spf13/cobra"
	"google.golang.org/protobuf/encoding/protojson"
)

var createCmd = &cobra.Command{
	Use:   "create <doc-path> <file|->",
	Short: "Create a document on a firewrite server",
	Args:  cobra.ExactArgs(2),
	RunE:  runCreate,
}

var getCmd = &cobra.Command{
	Use:   "get <doc-path> [field-path...]",
	Short: "Read a document from a firewrite server",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runGet,
}

func init() {
	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(getCmd)
	for _, c := range []*cobra.Command{createCmd, getCmd} {
		c.Flags().String("address", "", "server address (overrides client.address)")
	}
	getCmd.Flags().String("format", "yaml", "output format (yaml, json)")
}

// dial connects using FW_API_KEY and the configured client address.
func dial(cmd *cobra.Command) (*client.Client, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("address") {
		cfg.ClientAddress, _ = cmd.Flags().GetString("address")
	}
	return client.New(cfg, config.APIKey())
}

func runCreate(cmd *cobra.Command, args []string) error {
	data, err := readDocument(cmd, args[1])
	if err != nil {
		return err
	}

	c, err := dial(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	resp, err := c.Create(context.Background(), args[0], data)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "created %s at %s\n",
		args[0], resp.GetCommitTime().AsTime().Format("2006-01-02T15:04:05.000000Z07:00"))
	return nil
}

func runGet(cmd *cobra.Command, args []string) error {
	c, err := dial(cmd)
	if err != nil {
		return err
	}
	defer c.Close()

	doc, err := c.Get(context.Background(), args[0], args[1:]...)
	if err != nil {
		return err
	}

	format, _ := cmd.Flags().GetString("format")
	var out []byte
	switch format {
	case "yaml":
		out, err = document.Render(doc.GetFields())
	case "json":
		out, err = protojson.MarshalOptions{Multiline: true}.Marshal(doc)
		out = append(out, '\n')
	default:
		return fmt.Errorf("unknown format %q (want yaml or json)", format)
	}
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(out)
	return err
}
