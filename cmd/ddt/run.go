package main

import (
	"errors"
	"os"

	"github.com/ddt-tool/ddt"
	"github.com/ddt-tool/ddt/internal/presentation/tui"
	"github.com/ddt-tool/ddt/pkg/runner"
	"github.com/spf13/cobra"
)

func newRunCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [pack-id]",
		Short: "Walk a case through a pack interactively",
		Long: `Opens a case at the entry node of the pack (default "figure1") and prompts for
answers on the terminal. Use --case to resume a case from the export store.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			packID := "figure1"
			if len(args) > 0 {
				packID = args[0]
			}
			headless, _ := cmd.Flags().GetBool("headless")
			jsonMode, _ := cmd.Flags().GetBool("json")
			caseID, _ := cmd.Flags().GetString("case")
			if caseID != "" && len(args) > 0 {
				return errors.New("--case resumes the pack stored with the case; omit the pack id")
			}

			store, _, closeStore, err := a.exportStore()
			if err != nil {
				return err
			}
			defer closeStore()

			ctx := cmd.Context()
			loader := a.loader(ctx, a.source())
			a.watch(ctx, loader)

			eng, err := a.newEngine(ctx, loader, store, caseID)
			if err != nil {
				return err
			}

			in, out := cmd.InOrStdin(), cmd.OutOrStdout()
			var handler runner.IOHandler
			if jsonMode {
				handler = runner.NewJSONHandler(in, out)
			} else {
				var textOpts []runner.TextHandlerOption
				if f, ok := out.(*os.File); ok && tui.IsInteractive(f) {
					tui.PrintBanner(out, ddt.Version)
					textOpts = append(textOpts, runner.WithTextHandlerRenderer(tui.NewRenderer()))
				}
				handler = runner.NewTextHandler(in, out, textOpts...)
			}

			r := runner.NewRunner(
				runner.WithInputHandler(handler),
				runner.WithStore(store),
				runner.WithLogger(a.logger),
				runner.WithHeadless(headless || jsonMode),
			)
			if err := r.Run(ctx, eng, packID); err != nil {
				return err
			}
			a.logger.Info("case saved", "case_id", eng.Store().ID())
			return nil
		},
	}
	cmd.Flags().Bool("headless", false, "Exit when a terminal node is reached")
	cmd.Flags().Bool("json", false, "Read commands and write views as NDJSON")
	cmd.Flags().String("case", "", "Resume this case id from the export store")
	return cmd
}
