package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/book-expert/narration-pipeline/internal/content"
	"github.com/book-expert/narration-pipeline/internal/narration"
	"github.com/book-expert/narration-pipeline/internal/objectstore"
	"github.com/book-expert/narration-pipeline/internal/pipeline"
)

var (
	errPassFailed        = errors.New("narration pass reported errors")
	errNeedsAttention    = errors.New("scheduled content is missing narration")
	errNoPublicURL       = errors.New("storage.public_base_url is not configured")
	errImportNeedsSQLite = errors.New("import requires the sqlite content driver")
)

func passError(messages []string) error {
	if len(messages) == 0 {
		return nil
	}

	return fmt.Errorf("%w: %d", errPassFailed, len(messages))
}

func newBatchCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var force bool

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Generate narration for up to --limit items",
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}

			var result pipeline.Result

			err = application.Lock.TryRun(cmd.Context(), func(runCtx context.Context) {
				result = application.Generator.GenerateBatch(runCtx, pipeline.NewRunContext(), pipeline.BatchOptions{
					Limit: limit,
					Force: force,
				})
			})
			if err != nil {
				return err
			}

			fmt.Fprint(cmd.OutOrStdout(), renderResult(result))

			return passError(result.Errors)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 10, "Number of successful generations to stop after")
	cmd.Flags().BoolVar(&force, "force", false, "Regenerate artifacts that already exist")

	return cmd
}

func newRegenerateAllCommand(ctx *commandContext) *cobra.Command {
	var batchSize int
	var start int
	var force bool

	cmd := &cobra.Command{
		Use:   "regenerate-all",
		Short: "Generate narration for every item, resumably",
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}

			if !cmd.Flags().Changed("batch-size") {
				batchSize = application.Config.Generation.BulkBatchSize
			}

			result := pipeline.Result{NextOffset: start}

			err = application.Lock.TryRun(cmd.Context(), func(runCtx context.Context) {
				result = application.Generator.GenerateAll(runCtx, pipeline.BulkOptions{
					BatchSize: batchSize,
					Offset:    start,
					Force:     force,
				})
			})

			out := cmd.OutOrStdout()

			if err == nil {
				fmt.Fprint(out, renderResult(result))
			}

			fmt.Fprintf(out, "Resume with: %s\n", resumeCommand(batchSize, result.NextOffset, force))

			if err != nil {
				return err
			}

			return passError(result.Errors)
		},
	}

	cmd.Flags().IntVar(&batchSize, "batch-size", 25, "Generations between cooldown pauses")
	cmd.Flags().IntVar(&start, "start", 0, "Index of the first item to process")
	cmd.Flags().BoolVar(&force, "force", false, "Regenerate artifacts that already exist")

	return cmd
}

func newWindowCommand(ctx *commandContext) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "window",
		Short: "Generate narration for items scheduled in the next --days days",
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}

			if !cmd.Flags().Changed("days") {
				days = application.Config.Generation.LeadDays
			}

			var result pipeline.Result

			err = application.Lock.TryRun(cmd.Context(), func(runCtx context.Context) {
				result = application.Generator.GenerateWindow(runCtx, days)
			})
			if err != nil {
				return err
			}

			fmt.Fprint(cmd.OutOrStdout(), renderResult(result))

			return passError(result.Errors)
		},
	}

	cmd.Flags().IntVar(&days, "days", 7, "Lead time in days")

	return cmd
}

func newVerifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check and repair narration for today and tomorrow",
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}

			var report pipeline.Report

			err = application.Lock.TryRun(cmd.Context(), func(runCtx context.Context) {
				report = application.Verifier.Verify(runCtx)
			})
			if err != nil {
				return err
			}

			fmt.Fprint(cmd.OutOrStdout(), renderReport(report))

			if report.NeedsAttention() {
				return errNeedsAttention
			}

			return passError(report.Errors)
		},
	}
}

func newComposeCommand(ctx *commandContext) *cobra.Command {
	var id string

	cmd := &cobra.Command{
		Use:   "compose",
		Short: "Print the narration text of one item",
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}

			item, err := application.FindItem(cmd.Context(), id)
			if err != nil {
				return err
			}

			text, err := narration.ComposeItem(item)
			if err != nil {
				return fmt.Errorf("%s: %w", id, err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), text)

			return nil
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "Content item id")
	_ = cmd.MarkFlagRequired("id")

	return cmd
}

func newURLCommand(ctx *commandContext) *cobra.Command {
	var id string

	cmd := &cobra.Command{
		Use:   "url",
		Short: "Print the storage key and public URL of one item's narration",
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}

			item, err := application.FindItem(cmd.Context(), id)
			if err != nil {
				return err
			}

			key := application.Key(item)

			exists, err := application.Store.Exists(cmd.Context(), key)
			if err != nil {
				return fmt.Errorf("failed to check %s: %w", key, err)
			}

			base := application.Config.Storage.PublicBaseURL
			if base == "" {
				return fmt.Errorf("%w (key %s)", errNoPublicURL, key)
			}

			fmt.Fprint(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Key", "URL", "Stored"},
				[][]string{{item.ID, key, objectstore.PublicURL(base, key), fmt.Sprintf("%t", exists)}},
				nil,
			))
			fmt.Fprintln(cmd.OutOrStdout())

			return nil
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "Content item id")
	_ = cmd.MarkFlagRequired("id")

	return cmd
}

func newDeleteCommand(ctx *commandContext) *cobra.Command {
	var id string

	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Remove one item's stored narration so the next pass regenerates it",
		RunE: func(cmd *cobra.Command, args []string) error {
			application, err := ctx.ensureApp(cmd.Context())
			if err != nil {
				return err
			}

			item, err := application.FindItem(cmd.Context(), id)
			if err != nil {
				return err
			}

			key := application.Key(item)

			var deleteErr error

			err = application.Lock.TryRun(cmd.Context(), func(runCtx context.Context) {
				deleteErr = application.Store.Delete(runCtx, key)
			})
			if err != nil {
				return err
			}

			if deleteErr != nil {
				return fmt.Errorf("failed to delete %s: %w", key, deleteErr)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", key)

			return nil
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "Content item id")
	_ = cmd.MarkFlagRequired("id")

	return cmd
}

func newImportCommand(ctx *commandContext) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Load content items from a TOML seed file into the sqlite repository",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			if cfg.Content.Driver != content.DriverSQLite {
				return errImportNeedsSQLite
			}

			items, err := content.LoadSeedFile(file)
			if err != nil {
				return err
			}

			repo, err := content.OpenSQLite(cmd.Context(), cfg.Content.DSN)
			if err != nil {
				return err
			}
			defer func() { _ = repo.Close() }()

			if err := repo.Migrate(cmd.Context()); err != nil {
				return err
			}

			for _, item := range items {
				if err := repo.Upsert(cmd.Context(), item); err != nil {
					return err
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d items into %s\n", len(items), cfg.Content.DSN)

			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "Seed file path")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}
