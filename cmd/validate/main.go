package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jwebster45206/heartline/pkg/content"
)

var (
	contentDir string
	strict     bool
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:          "validate",
	Short:        "Validate a Heartline content pack",
	Long:         "Loads every .json, .toml and .yaml file in a content directory, reports defects the engine would skip at runtime, and lints for unreachable content.",
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE:         runValidate,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&contentDir, "dir", "d", "data", "Content pack directory")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show loader log output")
	rootCmd.Flags().BoolVar(&strict, "strict", true, "Reject unknown fields")
	rootCmd.AddCommand(graphCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadPack(cmd *cobra.Command, strictMode bool) (*content.Pack, []content.Issue, error) {
	var w io.Writer = io.Discard
	if verbose {
		w = cmd.ErrOrStderr()
	}
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))

	loader := content.NewLoader(logger).WithStrict(strictMode)
	pack, err := loader.LoadDir(contentDir)
	if err != nil {
		return nil, nil, err
	}
	return pack, loader.Issues(), nil
}

func runValidate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Validating %s...\n", contentDir)

	pack, issues, err := loadPack(cmd, strict)
	if err != nil {
		return err
	}

	for _, issue := range issues {
		fmt.Fprintf(out, "  - error: %s\n", issue.Error())
	}
	warnings := Lint(pack)
	for _, w := range warnings {
		fmt.Fprintf(out, "  - warning: %s\n", w)
	}

	if len(issues) > 0 {
		return fmt.Errorf("%d content errors in %s", len(issues), contentDir)
	}

	fmt.Fprintf(out, "Content pack is valid! %d scenarios, %d characters, %d chapters, %d warnings\n",
		len(pack.Scenarios), len(pack.Characters), len(pack.Chapters), len(warnings))
	return nil
}
