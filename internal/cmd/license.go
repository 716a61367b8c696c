package cmd

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/notelens/notelens/internal/config"
	"github.com/notelens/notelens/internal/core"
	apperrors "github.com/notelens/notelens/internal/errors"
	"github.com/notelens/notelens/internal/license"
)

var licenseCmd = &cobra.Command{
	Use:   "license",
	Short: "Manage the pro license",
}

var licenseVerifyCmd = &cobra.Command{
	Use:   "verify <license-key>",
	Short: "Verify a license key and store the result",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.GetConfig()
		if cfg == nil {
			return apperrors.NewUnknownError("configuration not loaded")
		}

		st, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close() // nolint:errcheck // best-effort cleanup

		client := license.NewClient(cfg.License.URL, cfg.License.ProductPermalink, cfg.License.ProductID)
		verified, err := client.Verify(cmd.Context(), strings.TrimSpace(args[0]))
		if err != nil {
			return err
		}

		if err := st.SaveLicense(cmd.Context(), *verified); err != nil {
			return apperrors.WrapStorage(cmd.Context(), err, "failed to store license")
		}

		switch verified.Status {
		case core.LicenseActive:
			fmt.Printf("License active for %s. Pro features unlocked.\n", verified.Email)
		case core.LicenseCancelled:
			fmt.Printf("License found for %s, but the subscription is cancelled or payment failed.\n", verified.Email)
		default:
			fmt.Println("License key was rejected.")
		}
		return nil
	},
}

var licenseStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the stored license status",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close() // nolint:errcheck // best-effort cleanup

		stored, err := st.License(cmd.Context())
		if err != nil {
			return apperrors.WrapStorage(cmd.Context(), err, "failed to read license")
		}
		if stored == nil {
			fmt.Println("No license stored. Running on the free tier.")
			return nil
		}

		fmt.Printf("License: %s\n", maskKey(stored.Key))
		fmt.Printf("Status: %s\n", stored.Status)
		if stored.Email != "" {
			fmt.Printf("Email: %s\n", stored.Email)
		}
		if !stored.VerifiedAt.IsZero() {
			fmt.Printf("Last verified: %s\n", humanize.Time(stored.VerifiedAt))
		}
		return nil
	},
}

func init() {
	licenseCmd.AddCommand(licenseVerifyCmd)
	licenseCmd.AddCommand(licenseStatusCmd)
	rootCmd.AddCommand(licenseCmd)
}
