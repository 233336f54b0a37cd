package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/facematch/internal/filestore"
	"github.com/example/facematch/internal/matcher"
)

type matchOptions struct {
	storePath string
	queryPath string
	threshold float32
	register  bool
}

type queryFile struct {
	Embedding []float32 `json:"embedding"`
	FilePath  string    `json:"file_path"`
	FaceID    string    `json:"face_id"`
}

func newMatchCommand() *cobra.Command {
	opts := matchOptions{}
	cmd := &cobra.Command{
		Use:   "match",
		Short: "Match a query embedding against a JSON identity file",
		Long: `Match reads a query embedding and compares it against every identity in
the store file, printing the decision and the full similarity ranking.
With --register a face that matches nobody is appended to the store.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMatch(opts, matcher.New(matcher.WithThreshold(opts.threshold)), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&opts.storePath, "store", "identities.json", "Identity store file")
	cmd.Flags().StringVar(&opts.queryPath, "query", "", "Query file with an \"embedding\" array")
	cmd.Flags().Float32Var(&opts.threshold, "threshold", matcher.DefaultThreshold, "Acceptance threshold (exclusive)")
	cmd.Flags().BoolVar(&opts.register, "register", false, "Append the query to the store when it matches nobody")
	_ = cmd.MarkFlagRequired("query")
	return cmd
}

func runMatch(opts matchOptions, m *matcher.Matcher, out io.Writer) error {
	data, err := os.ReadFile(opts.queryPath)
	if err != nil {
		return fmt.Errorf("read query: %w", err)
	}
	var query queryFile
	if err := json.Unmarshal(data, &query); err != nil {
		return fmt.Errorf("decode query: %w", err)
	}

	store, err := filestore.Load(opts.storePath)
	if err != nil {
		return err
	}

	result, err := m.Match(query.Embedding, store.Identities())
	if err != nil {
		return err
	}

	if opts.register && result.IsNew() {
		record := filestore.Record{
			ID:        result.Token,
			FilePath:  query.FilePath,
			FaceID:    query.FaceID,
			Timestamp: time.Now().UnixMilli(),
			Embedding: query.Embedding,
		}
		if err := store.Append(record); err != nil {
			return err
		}
		if err := store.Save(); err != nil {
			return err
		}
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
