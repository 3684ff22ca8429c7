package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/riverfjs/slackify-go"
	"github.com/riverfjs/slackify-go/internal/slackapi"
)

// newFormatCmd 从 stdin 读取 markdown，输出 Block Kit JSON
func newFormatCmd() *cobra.Command {
	var (
		chunkSize int
		preview   bool
	)
	cmd := &cobra.Command{
		Use:   "format",
		Short: "Convert markdown from stdin to Block Kit JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("read input: %w", err)
			}
			blocks := slackify.FormatContent(string(input),
				slackify.WithChunkSize(chunkSize),
				slackify.WithDiagramPreview(preview),
			)

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{"blocks": slackapi.RenderBlocks(blocks)})
		},
	}
	cmd.Flags().IntVar(&chunkSize, "chunk-size", slackify.DefaultChunkSize, "maximum UTF-16 units per text block")
	cmd.Flags().BoolVar(&preview, "preview", false, "add mermaid.ink image blocks for diagrams")
	return cmd
}
