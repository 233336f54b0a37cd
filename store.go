package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/example/facematch/internal/filestore"
)

// storeEntry is a record as listed on the command line, without its embedding.
type storeEntry struct {
	ID         string `json:"id"`
	FilePath   string `json:"file_path"`
	FaceID     string `json:"face_id,omitempty"`
	Timestamp  int64  `json:"timestamp"`
	Dimensions int    `json:"dimensions"`
}

func entryOf(r filestore.Record) storeEntry {
	return storeEntry{ID: r.ID, FilePath: r.FilePath, FaceID: r.FaceID, Timestamp: r.Timestamp, Dimensions: len(r.Embedding)}
}

func newListCommand() *cobra.Command {
	var storePath string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the identities in a JSON identity file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(storePath, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&storePath, "store", "identities.json", "Identity store file")
	return cmd
}

func newDeleteCommand() *cobra.Command {
	var storePath string
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Remove an identity from a JSON identity file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelete(storePath, args[0], cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&storePath, "store", "identities.json", "Identity store file")
	return cmd
}

func runList(storePath string, out io.Writer) error {
	store, err := filestore.Load(storePath)
	if err != nil {
		return err
	}
	records := store.Records()
	entries := make([]storeEntry, len(records))
	for i, r := range records {
		entries[i] = entryOf(r)
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(entries)
}

func runDelete(storePath, id string, out io.Writer) error {
	store, err := filestore.Load(storePath)
	if err != nil {
		return err
	}
	removed, ok := store.Delete(id)
	if !ok {
		return fmt.Errorf("identity %s not found in %s", id, storePath)
	}
	if err := store.Save(); err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(entryOf(removed))
}
