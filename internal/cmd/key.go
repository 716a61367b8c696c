package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/notelens/notelens/internal/core"
	"github.com/notelens/notelens/internal/core/router"
	apperrors "github.com/notelens/notelens/internal/errors"
)

var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Manage the upstream API key",
}

var keySetCmd = &cobra.Command{
	Use:   "set <api-key>",
	Short: "Save the API key and clear cached data",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close() // nolint:errcheck // best-effort cleanup

		dispatch := buildRouter(st)
		resp := dispatch.Dispatch(cmd.Context(), router.Request{
			Action: core.ActionSaveAPIKey,
			APIKey: strings.TrimSpace(args[0]),
		})
		if !resp.Success {
			return responseError(resp)
		}

		fmt.Println("API key saved. Run 'notelens key validate' to verify it.")
		return nil
	},
}

var keyShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the stored API key (masked)",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close() // nolint:errcheck // best-effort cleanup

		key, valid, err := st.APIKey(cmd.Context())
		if err != nil {
			return apperrors.WrapStorage(cmd.Context(), err, "failed to read api key")
		}
		if key == "" {
			fmt.Println("No API key configured.")
			return nil
		}

		status := "unvalidated"
		if valid {
			status = "validated"
		}
		fmt.Printf("API key: %s (%s)\n", maskKey(key), status)
		return nil
	},
}

var keyValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the stored API key against the upstream",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close() // nolint:errcheck // best-effort cleanup

		dispatch := buildRouter(st)
		resp := dispatch.Dispatch(cmd.Context(), router.Request{
			Action: core.ActionValidateAPIKey,
		})
		if !resp.Success {
			return responseError(resp)
		}

		var account core.Account
		if err := json.Unmarshal(resp.Data, &account); err != nil {
			return apperrors.WrapUnknown(cmd.Context(), err, "decode account payload")
		}

		fmt.Printf("API key is valid: %s <%s>\n", account.Name, account.Email)
		return nil
	},
}

// maskKey keeps enough of the key to recognize it without exposing it.
func maskKey(key string) string {
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + strings.Repeat("*", len(key)-8) + key[len(key)-4:]
}

func init() {
	keyCmd.AddCommand(keySetCmd)
	keyCmd.AddCommand(keyShowCmd)
	keyCmd.AddCommand(keyValidateCmd)
	rootCmd.AddCommand(keyCmd)
}
