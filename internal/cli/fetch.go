package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/iconidentify/linkgrab/internal/domain"
)

var (
	fetchDir      string
	fetchMaxBytes int64
	fetchSpoiler  bool
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <text>...",
	Short: "Download the media behind every link in text",
	Long:  "fetch downloads each media item that fits within --max-bytes into --dir and prints a link for everything that does not.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  fetchAction,
}

func init() {
	fetchCmd.Flags().StringVar(&fetchDir, "dir", ".", "directory to write attachments to")
	fetchCmd.Flags().Int64Var(&fetchMaxBytes, "max-bytes", 0, "attachment budget in bytes (default from config)")
	fetchCmd.Flags().BoolVar(&fetchSpoiler, "spoiler", false, "mark links as spoilers")
	rootCmd.AddCommand(fetchCmd)
}

func fetchAction(cmd *cobra.Command, args []string) error {
	svc, err := newEmbedService()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(fetchDir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	ctx := cmd.Context()
	refs, extractErr := svc.Extract(ctx, strings.Join(args, " "))
	if len(refs) == 0 {
		return extractErr
	}
	if extractErr != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "warning:", domain.UserMessage(extractErr))
	}

	failed := 0
	for _, ref := range refs {
		post, err := svc.Resolve(ctx, ref)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", ref, domain.UserMessage(err))
			failed++
			continue
		}
		results, err := svc.Fetch(ctx, post, fetchMaxBytes, fetchSpoiler)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", ref, err)
			failed++
			continue
		}
		if err := saveResults(cmd.OutOrStdout(), fetchDir, results); err != nil {
			return err
		}
	}

	if failed == len(refs) {
		return fmt.Errorf("all %d references failed", failed)
	}
	return nil
}

// saveResults writes attachments into dir and reports every result on w.
func saveResults(w io.Writer, dir string, results []domain.FetchResult) error {
	for _, r := range results {
		if r.IsLink() {
			fmt.Fprintf(w, "link  %s\n", r.Link)
			continue
		}
		path := filepath.Join(dir, filepath.Base(r.Attachment.Filename))
		if err := os.WriteFile(path, r.Attachment.Data, 0644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		fmt.Fprintf(w, "saved %s (%d bytes)\n", path, len(r.Attachment.Data))
	}
	return nil
}
