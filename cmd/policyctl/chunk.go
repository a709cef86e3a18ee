package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/kirillkom/insurance-upsell/internal/infrastructure/chunking"
)

var (
	chunkSize    int
	chunkOverlap int
	chunkJSON    bool
)

var chunkCmd = &cobra.Command{
	Use:   "chunk [file]",
	Short: "Split a text file into overlapping chunks",
	Long: `Runs the ingestion chunker on a file, or on stdin when no file is given,
and prints the resulting chunks. Nothing is stored or embedded.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runChunk,
}

func init() {
	chunkCmd.Flags().IntVar(&chunkSize, "size", chunking.DefaultChunkSize, "maximum chunk size in characters")
	chunkCmd.Flags().IntVar(&chunkOverlap, "overlap", chunking.DefaultOverlap, "characters shared by consecutive chunks")
	chunkCmd.Flags().BoolVar(&chunkJSON, "json", false, "output chunks as JSON")
	rootCmd.AddCommand(chunkCmd)
}

func runChunk(cmd *cobra.Command, args []string) error {
	var (
		raw []byte
		err error
	)
	if len(args) == 1 {
		raw, err = os.ReadFile(args[0])
	} else {
		raw, err = io.ReadAll(cmd.InOrStdin())
	}
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	chunks := chunking.ChunkText(string(raw), chunking.Options{MaxChunkSize: chunkSize, Overlap: chunkOverlap})

	if chunkJSON {
		data, err := json.MarshalIndent(chunks, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal chunks: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}

	for _, c := range chunks {
		fmt.Fprintf(cmd.OutOrStdout(), "--- chunk %d (%d chars)\n", c.Index, len([]rune(c.Text)))
		fmt.Fprintln(cmd.OutOrStdout(), c.Text)
	}
	return nil
}
