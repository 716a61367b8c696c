package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/notelens/notelens/internal/core"
	"github.com/notelens/notelens/internal/core/router"
	apperrors "github.com/notelens/notelens/internal/errors"
	"github.com/notelens/notelens/internal/observability"
	"github.com/notelens/notelens/internal/output"
)

var (
	notesOutputFormat string
	notesWithContent  bool
	notesRefresh      bool
)

var notesCmd = &cobra.Command{
	Use:   "notes <task-id>",
	Short: "Fetch the notes attached to a task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		taskID := args[0]

		format, err := output.ParseFormat(notesOutputFormat)
		if err != nil {
			return err
		}
		formatter := output.NewFormatter(format)

		st, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close() // nolint:errcheck // best-effort cleanup

		dispatch := buildRouter(st)

		if notesRefresh {
			_ = dispatch.Cache.Delete(cmd.Context(), "notes:"+taskID)
			_ = dispatch.Cache.Delete(cmd.Context(), "content:"+taskID)
		}

		resp := dispatch.Dispatch(cmd.Context(), router.Request{
			Action: core.ActionFetchNotes,
			TaskID: taskID,
		})
		if !resp.Success {
			return responseError(resp)
		}

		observability.CLILogger.Debug("Notes fetched",
			zap.String("task_id", taskID),
			zap.Bool("cached", resp.Cached))

		var payload struct {
			Notes []core.Note `json:"notes"`
		}
		if err := json.Unmarshal(resp.Data, &payload); err != nil {
			return apperrors.WrapUnknown(cmd.Context(), err, "decode notes payload")
		}

		rendered, err := formatter.FormatNotes(payload.Notes)
		if err != nil {
			return err
		}
		fmt.Println(rendered)

		if notesWithContent {
			resp := dispatch.Dispatch(cmd.Context(), router.Request{
				Action: core.ActionFetchContent,
				TaskID: taskID,
			})
			if !resp.Success {
				return responseError(resp)
			}

			var payload struct {
				Content *core.TaskContent `json:"content"`
			}
			if err := json.Unmarshal(resp.Data, &payload); err != nil {
				return apperrors.WrapUnknown(cmd.Context(), err, "decode content payload")
			}

			rendered, err := formatter.FormatContent(payload.Content)
			if err != nil {
				return err
			}
			fmt.Println(rendered)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(notesCmd)

	notesCmd.Flags().StringVarP(&notesOutputFormat, "output", "o", "table", "output format (table, json)")
	notesCmd.Flags().BoolVar(&notesWithContent, "content", false, "also fetch the task's board, group, and column values")
	notesCmd.Flags().BoolVar(&notesRefresh, "refresh", false, "bypass the cache and fetch fresh data")
}
