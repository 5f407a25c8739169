package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"transcriber/internal/api"
	"transcriber/internal/router"
	"transcriber/internal/textutil"
)

const createdDisplayLayout = "2006-01-02 15:04"

func newListCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	var search string

	cmd := &cobra.Command{
		Use:         "list",
		Aliases:     []string{"ls"},
		Short:       "List transcriptions",
		Args:        cobra.NoArgs,
		Annotations: routeAnnotation(router.Home),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureApp()
			if err != nil {
				return err
			}
			if err := a.Transcriptions.Refresh(cmd.Context()); err != nil {
				return ctx.apiError(err)
			}
			records := a.Transcriptions.List()
			query := strings.TrimSpace(search)
			if query != "" {
				results := a.Transcriptions.Search(query)
				records = make([]api.Transcription, 0, len(results))
				for _, result := range results {
					records = append(records, result.Record)
				}
			}
			if jsonOut {
				return writeJSON(cmd, records)
			}
			out := cmd.OutOrStdout()
			if len(records) == 0 {
				if query != "" {
					fmt.Fprintf(out, "No transcriptions match %q.\n", query)
					return nil
				}
				fmt.Fprintln(out, "No transcriptions yet. Upload one with `transcriber upload <file>`.")
				return nil
			}
			fmt.Fprintln(out, renderTranscriptionTable(records))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit the backend records as JSON")
	cmd.Flags().StringVarP(&search, "search", "s", "", "Rank transcriptions by relevance to a query")
	return cmd
}

func renderTranscriptionTable(records []api.Transcription) string {
	columns := []tableColumn{
		{header: "ID"},
		{header: "Name", maxWidth: 32},
		{header: "File", maxWidth: 32},
		{header: "Created"},
		{header: "Words", align: alignRight},
	}
	rows := make([][]string, 0, len(records))
	for _, record := range records {
		rows = append(rows, []string{
			record.ID,
			record.DisplayName(),
			record.FileName,
			createdLabel(record),
			humanize.Comma(int64(textutil.WordCount(record.Text))),
		})
	}
	return renderTable(columns, rows, fmt.Sprintf("%d transcription(s)", len(records)))
}

func createdLabel(record api.Transcription) string {
	if created, ok := record.Created(); ok {
		return created.Format(createdDisplayLayout)
	}
	if record.CreatedAt != "" {
		return record.CreatedAt
	}
	return "-"
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	var chunks bool

	cmd := &cobra.Command{
		Use:         "show <id>",
		Short:       "Print a transcription",
		Args:        cobra.ExactArgs(1),
		Annotations: routeAnnotation(router.Transcription),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureApp()
			if err != nil {
				return err
			}
			record, err := a.Client.Transcription(cmd.Context(), args[0])
			if err != nil {
				if errors.Is(err, api.ErrNotFound) {
					return fmt.Errorf("transcription %s not found", args[0])
				}
				return ctx.apiError(err)
			}
			if jsonOut {
				return writeJSON(cmd, record)
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			for _, line := range renderSectionHeader(record.DisplayName(), colorize) {
				fmt.Fprintln(out, line)
			}
			fmt.Fprintf(out, "ID:      %s\n", record.ID)
			if record.FileName != "" {
				fmt.Fprintf(out, "File:    %s\n", record.FileName)
			}
			fmt.Fprintf(out, "Created: %s\n\n", createdLabel(record))
			if chunks && len(record.Chunks) > 0 {
				for _, chunk := range record.Chunks {
					fmt.Fprintf(out, "[%s - %s] %s\n", formatOffset(chunk.Timestamp[0]), formatOffset(chunk.Timestamp[1]), strings.TrimSpace(chunk.Text))
				}
				return nil
			}
			fmt.Fprintln(out, strings.TrimSpace(record.Text))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit the backend record as JSON")
	cmd.Flags().BoolVar(&chunks, "chunks", false, "Print timestamped chunks instead of the full text")
	return cmd
}

func renderSectionHeader(title string, colorize bool) []string {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	rule := strings.Repeat("-", len(line))
	if colorize {
		line = ansiBlue + line + ansiReset
		rule = ansiBlue + rule + ansiReset
	}
	return []string{line, rule}
}

// formatOffset renders a chunk bound as m:ss.s; nil means open-ended.
func formatOffset(seconds *float64) string {
	if seconds == nil || math.IsNaN(*seconds) {
		return "end"
	}
	total := *seconds
	minutes := int(total) / 60
	rest := total - float64(minutes*60)
	return fmt.Sprintf("%d:%04.1f", minutes, rest)
}

func newDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:         "delete <id>",
		Aliases:     []string{"rm"},
		Short:       "Delete a transcription and its audio",
		Args:        cobra.ExactArgs(1),
		Annotations: routeAnnotation(router.Transcription),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureApp()
			if err != nil {
				return err
			}
			if err := a.DeleteTranscription(cmd.Context(), args[0]); err != nil {
				if errors.Is(err, api.ErrNotFound) {
					return fmt.Errorf("transcription %s not found", args[0])
				}
				return ctx.apiError(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}
}

func newAudioCommand(ctx *commandContext) *cobra.Command {
	var output string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "audio <id>",
		Short:       "Download the audio of a transcription",
		Args:        cobra.ExactArgs(1),
		Annotations: routeAnnotation(router.Transcription),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureApp()
			if err != nil {
				return err
			}
			id := args[0]
			target := strings.TrimSpace(output)
			if target == "" {
				record, err := a.Client.Transcription(cmd.Context(), id)
				if err != nil {
					if errors.Is(err, api.ErrNotFound) {
						return fmt.Errorf("transcription %s not found", id)
					}
					return ctx.apiError(err)
				}
				target = textutil.SanitizeFileName(filepath.Base(record.FileName))
				if target == "" {
					target = textutil.SanitizeFileName(id)
				}
				if target == "" {
					return fmt.Errorf("cannot derive a file name for %s; pass --output", id)
				}
			}

			if !overwrite {
				if _, err := os.Lstat(target); err == nil {
					return fmt.Errorf("%s already exists (use --overwrite to replace it)", target)
				}
			}
			n, err := downloadAudio(cmd.Context(), a.Client, id, target)
			if err != nil {
				if errors.Is(err, api.ErrNotFound) {
					return fmt.Errorf("audio for %s not found", id)
				}
				return ctx.apiError(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s to %s\n", humanize.Bytes(uint64(n)), target)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Destination file (defaults to the uploaded file name)")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace the destination if it exists")
	return cmd
}

// downloadAudio writes the audio into a temp file next to target and renames
// it into place once the download completed. A failed download leaves target
// untouched.
func downloadAudio(ctx context.Context, client *api.Client, id, target string) (int64, error) {
	tmp, err := os.CreateTemp(filepath.Dir(target), "."+filepath.Base(target)+".*.part")
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", target, err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpPath)
		}
	}()

	n, err := client.DownloadAudio(ctx, id, tmp)
	closeErr := tmp.Close()
	if err != nil {
		return n, err
	}
	if closeErr != nil {
		return n, fmt.Errorf("write %s: %w", target, closeErr)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return n, fmt.Errorf("chmod %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, target); err != nil {
		return n, fmt.Errorf("replace %s: %w", target, err)
	}
	committed = true
	return n, nil
}
