package cmd

import (
	"fmt"

	"cloud.google.com/go/firestore/apiv1/firestorepb"
	"github.com/solatis/firewrite/internal/convert"
	"github.com/spf13/cobra"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/encoding/prototext"
)

var convertCmd = &cobra.Command{
	Use:   "convert <doc-path> <file|->",
	Short: "Print the commit request that would create a document",
	Long: `Decodes a YAML document and prints the CommitRequest carrying its create
writes. Nothing is sent; the output can be replayed against any Firestore
endpoint.`,
	Args: cobra.ExactArgs(2),
	RunE: runConvert,
}

func init() {
	rootCmd.AddCommand(convertCmd)
	convertCmd.Flags().String("format", "json", "output format (json, text)")
}

func runConvert(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	data, err := readDocument(cmd, args[1])
	if err != nil {
		return err
	}
	name, err := cfg.DocumentName(args[0])
	if err != nil {
		return err
	}
	writes, err := convert.WritesForCreate(name, data)
	if err != nil {
		return err
	}

	req := &firestorepb.CommitRequest{Database: cfg.DatabaseName(), Writes: writes}

	format, _ := cmd.Flags().GetString("format")
	var out []byte
	switch format {
	case "json":
		out, err = protojson.MarshalOptions{Multiline: true}.Marshal(req)
	case "text":
		out, err = prototext.MarshalOptions{Multiline: true}.Marshal(req)
	default:
		return fmt.Errorf("unknown format %q (want json or text)", format)
	}
	if err != nil {
		return fmt.Errorf("failed to encode commit request: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
