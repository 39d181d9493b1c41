package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/contentmix/internal/asset"
	"github.com/sells-group/contentmix/internal/model"
	"github.com/sells-group/contentmix/internal/store"
)

var assetsCmd = &cobra.Command{
	Use:   "assets",
	Short: "Browse and review stored assets",
}

var assetsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List assets",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		filter, err := assetFilterFromFlags(cmd)
		if err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		assets, err := st.ListAssets(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "assets list")
		}
		if len(assets) == 0 {
			fmt.Fprintln(os.Stderr, "No assets found.")
			return nil
		}
		formatAssetsList(cmd.OutOrStdout(), assets)
		return nil
	},
}

var assetsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print one asset as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		a, err := st.GetAsset(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "assets show")
		}
		return printJSON(cmd.OutOrStdout(), a)
	},
}

var assetsStatusCmd = &cobra.Command{
	Use:   "status <id> <status>",
	Short: "Move an asset along the review workflow",
	Long:  "Valid moves: New → In Review → Approved | Rejected, Rejected → In Review, Approved → Ready for Publisher → Picked Up.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		a, err := asset.Transition(ctx, st, args[0], model.AssetStatus(args[1]))
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", a.ID, a.Status)
		return err
	},
}

var assetsContentTypeCmd = &cobra.Command{
	Use:   "content-type <id> <type>",
	Short: "Reclassify an asset (Branded, Endorsed, UGC, Mixed, N/A)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		a, err := asset.SetContentType(ctx, st, args[0], model.AssetContentType(args[1]))
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", a.ID, a.ContentType)
		return err
	},
}

func assetFilterFromFlags(cmd *cobra.Command) (store.AssetFilter, error) {
	search, _ := cmd.Flags().GetString("search")
	statuses, _ := cmd.Flags().GetStringSlice("status")
	types, _ := cmd.Flags().GetStringSlice("content-type")
	limit, _ := cmd.Flags().GetInt("limit")
	offset, _ := cmd.Flags().GetInt("offset")

	f := store.AssetFilter{Search: search, Limit: limit, Offset: offset}
	for _, s := range statuses {
		st := model.AssetStatus(strings.TrimSpace(s))
		if !st.Valid() {
			return f, eris.Wrapf(asset.ErrInvalidUpload, "unknown status %q", s)
		}
		f.Statuses = append(f.Statuses, st)
	}
	for _, s := range types {
		ct := model.AssetContentType(strings.TrimSpace(s))
		if !ct.Valid() {
			return f, eris.Wrapf(asset.ErrInvalidUpload, "unknown content type %q", s)
		}
		f.ContentTypes = append(f.ContentTypes, ct)
	}
	return f, nil
}

// formatAssetsList writes a tabular list of assets to w.
func formatAssetsList(out io.Writer, assets []model.Asset) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tCONTENT_SN_ID\tNAME\tSTATUS\tCONTENT_TYPE\tSCORE\tSAFE\tCREATED")
	_, _ = fmt.Fprintln(w, "--\t-------------\t----\t------\t------------\t-----\t----\t-------")

	for _, a := range assets {
		name := a.Name
		if len(name) > 30 {
			name = name[:27] + "..."
		}
		score := "-"
		if a.ContentScore != nil {
			score = fmt.Sprintf("%.0f", *a.ContentScore)
		}
		safe := "-"
		if a.BrandSafety != nil {
			safe = fmt.Sprintf("%t", a.BrandSafety.IsSafe)
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			truncateID(a.ID),
			a.ContentSnID,
			name,
			a.Status,
			a.ContentType,
			score,
			safe,
			a.CreationDate,
		)
	}
	_ = w.Flush()
}

func init() {
	f := assetsListCmd.Flags()
	f.String("search", "", "match name or contentSnId")
	f.StringSlice("status", nil, "filter by status (repeatable)")
	f.StringSlice("content-type", nil, "filter by content type (repeatable)")
	f.Int("limit", 50, "max number of assets to display")
	f.Int("offset", 0, "skip this many assets")

	assetsCmd.AddCommand(assetsListCmd, assetsShowCmd, assetsStatusCmd, assetsContentTypeCmd)
	rootCmd.AddCommand(assetsCmd)
}
