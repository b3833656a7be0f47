package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/pipetakeoff/internal/session"
)

func newRenderCmd(opts *rootOptions) *cobra.Command {
	var (
		outDir     string
		skipHidden bool
	)

	cmd := &cobra.Command{
		Use:   "render <pdf-or-directory>",
		Short: "Render PDF pages to PNG files",
		Long: `Renders every page of a PDF, or of every PDF under a directory, with the
same settings the API uses and writes them as page-NNN.png files.`,
		Example: `  pipetakeoff render drawings/site-plan.pdf --out ./pages
  pipetakeoff render drawings/ --out ./pages`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(opts.cfg, opts.logger)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			target := args[0]

			st, err := os.Stat(target)
			if err != nil {
				return err
			}

			if !st.IsDir() {
				res, err := a.ingest.IngestFile(ctx, target)
				if err != nil {
					return err
				}
				dir := filepath.Join(outDir, stem(res.FileName))
				if err := writePages(a.store, res.SessionID, res.PageCount, dir); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d pages -> %s\n", target, res.PageCount, dir)
				return nil
			}

			return renderDirectory(ctx, cmd, a, target, outDir, skipHidden)
		},
	}

	cmd.Flags().StringVarP(&outDir, "out", "o", "pages", "Output directory")
	cmd.Flags().BoolVar(&skipHidden, "skip-hidden", true, "Skip hidden files and directories")

	return cmd
}

func renderDirectory(ctx context.Context, cmd *cobra.Command, a *app, root, outDir string, skipHidden bool) error {
	results, stats, err := a.ingest.IngestDirectory(ctx, root, skipHidden)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, r := range results {
		if r.Err != "" {
			fmt.Fprintf(out, "%s: FAILED %s\n", r.Path, r.Err)
			continue
		}
		rel, relErr := filepath.Rel(root, r.Path)
		if relErr != nil {
			rel = filepath.Base(r.Path)
		}
		dir := filepath.Join(outDir, stem(rel))
		if err := writePages(a.store, r.SessionID, r.PageCount, dir); err != nil {
			return err
		}
		fmt.Fprintf(out, "%s: %d pages -> %s\n", r.Path, r.PageCount, dir)
	}
	fmt.Fprintf(out, "scanned=%d matched=%d succeeded=%d failed=%d\n",
		stats.Scanned, stats.Matched, stats.Succeeded, stats.Failed)

	if stats.Failed > 0 {
		return fmt.Errorf("%d of %d documents failed to render", stats.Failed, stats.Matched)
	}
	return nil
}

func writePages(store *session.Store, sessionID string, pageCount int, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for n := 1; n <= pageCount; n++ {
		img, err := store.Page(sessionID, n)
		if err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(dir, fmt.Sprintf("page-%03d.png", n)), img, 0o644); err != nil {
			return err
		}
	}
	return nil
}

func stem(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}
