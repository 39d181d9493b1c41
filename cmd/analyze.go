package main

import (
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/contentmix/internal/asset"
	"github.com/sells-group/contentmix/internal/config"
	"github.com/sells-group/contentmix/internal/features"
	"github.com/sells-group/contentmix/internal/media"
	"github.com/sells-group/contentmix/internal/model"
)

var analyzeFlags struct {
	name, creator, campaign        string
	length, tags, daypart, spotLen string
	contentType                    string
	manual, overrides              string
	dryRun                         bool
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file|gs://ref>",
	Short: "Run the upload pipeline on one creative and print the asset",
	Long:  "Screens the creative for brand safety, extracts its features, merges the manual metadata and saves the asset unless --dry-run is set.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		up, err := buildUpload(args[0])
		if err != nil {
			return err
		}

		env, err := initEnv(ctx, config.ModeAnalyze)
		if err != nil {
			return err
		}
		defer env.Close()

		var a *model.Asset
		if analyzeFlags.dryRun {
			a, err = env.Analyzer.Analyze(ctx, up)
		} else {
			a, err = env.Analyzer.Ingest(ctx, up)
		}
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), a)
	},
}

func buildUpload(arg string) (asset.Upload, error) {
	f, ref, err := loadMedia(arg)
	if err != nil {
		return asset.Upload{}, err
	}
	up := asset.Upload{
		File:        f,
		MediaRef:    ref,
		Name:        analyzeFlags.name,
		Creator:     analyzeFlags.creator,
		Campaign:    analyzeFlags.campaign,
		Length:      analyzeFlags.length,
		Tags:        analyzeFlags.tags,
		Daypart:     analyzeFlags.daypart,
		SpotLength:  analyzeFlags.spotLen,
		ContentType: model.AssetContentType(analyzeFlags.contentType),
	}
	if analyzeFlags.manual != "" {
		if err := json.Unmarshal([]byte(analyzeFlags.manual), &up.Manual); err != nil {
			return up, eris.Wrap(errors.Join(asset.ErrInvalidUpload, err), "analyze: parse --manual")
		}
	}
	if analyzeFlags.overrides != "" {
		var o map[string]features.Override
		if err := json.Unmarshal([]byte(analyzeFlags.overrides), &o); err != nil {
			return up, eris.Wrap(errors.Join(asset.ErrInvalidUpload, err), "analyze: parse --overrides")
		}
		up.Overrides = o
	}
	return up, nil
}

// isMediaRef reports whether arg names remote or inline media rather than a
// local path.
func isMediaRef(arg string) bool {
	for _, p := range []string{"gs://", "http://", "https://"} {
		if strings.HasPrefix(arg, p) {
			return true
		}
	}
	return media.IsDataURI(arg)
}

// loadMedia returns either a decoded local file or the reference itself.
func loadMedia(arg string) (*media.File, string, error) {
	if isMediaRef(arg) {
		return nil, arg, nil
	}
	data, err := os.ReadFile(arg) // #nosec G304 -- operator-supplied path
	if err != nil {
		return nil, "", eris.Wrap(err, "read media file")
	}
	name := filepath.Base(arg)
	return &media.File{Name: name, MIMEType: media.DetectType("", name, data), Data: data}, "", nil
}

// flowMediaRef is the media string a standalone flow receives: the
// reference, or the file as a data URI.
func flowMediaRef(f *media.File, ref string) string {
	if f != nil {
		return f.DataURI()
	}
	return ref
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	f := analyzeCmd.Flags()
	f.StringVar(&analyzeFlags.name, "name", "", "asset name (default: file name)")
	f.StringVar(&analyzeFlags.creator, "creator", "", "creator or brand (required)")
	f.StringVar(&analyzeFlags.campaign, "campaign", "", "campaign (required)")
	f.StringVar(&analyzeFlags.length, "length", "", "creative length, e.g. 30s")
	f.StringVar(&analyzeFlags.tags, "tags", "", "comma-separated tags")
	f.StringVar(&analyzeFlags.daypart, "daypart", "", "daypart")
	f.StringVar(&analyzeFlags.spotLen, "spot-length", "", "spot length")
	f.StringVar(&analyzeFlags.contentType, "content-type", "", "Branded, Endorsed, UGC, Mixed or N/A")
	f.StringVar(&analyzeFlags.manual, "manual", "", "manual context as JSON")
	f.StringVar(&analyzeFlags.overrides, "overrides", "", "feature overrides as JSON")
	f.BoolVar(&analyzeFlags.dryRun, "dry-run", false, "analyze without saving")
	_ = analyzeCmd.MarkFlagRequired("creator")
	_ = analyzeCmd.MarkFlagRequired("campaign")
	rootCmd.AddCommand(analyzeCmd)
}
