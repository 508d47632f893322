package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/iconidentify/linkgrab/internal/domain"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <text>...",
	Short: "Print the normalized posts behind every link in text as JSON",
	Args:  cobra.MinimumNArgs(1),
	RunE:  resolveAction,
}

func init() {
	rootCmd.AddCommand(resolveCmd)
}

type resolvedPost struct {
	Reference domain.Reference `json:"reference"`
	Post      *domain.Post     `json:"post,omitempty"`
	Error     string           `json:"error,omitempty"`
}

func resolveAction(cmd *cobra.Command, args []string) error {
	svc, err := newEmbedService()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	refs, extractErr := svc.Extract(ctx, strings.Join(args, " "))
	if len(refs) == 0 {
		return extractErr
	}
	if extractErr != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "warning:", domain.UserMessage(extractErr))
	}

	out := make([]resolvedPost, 0, len(refs))
	failed := 0
	for _, ref := range refs {
		post, err := svc.Resolve(ctx, ref)
		r := resolvedPost{Reference: ref, Post: post}
		if err != nil {
			r.Error = err.Error()
			failed++
		}
		out = append(out, r)
	}

	if err := writeJSON(cmd.OutOrStdout(), out); err != nil {
		return err
	}
	if failed == len(refs) {
		return fmt.Errorf("all %d references failed to resolve", failed)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
