package main

import (
	_ "embed"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

//go:embed assets/banner_color.ansi
var bannerColor string

//go:embed assets/banner_plain.txt
var bannerPlain string

const defaultConfigPath = "./data/config.yaml"

func newRootCmd() *cobra.Command {
	var noBanner bool

	root := &cobra.Command{
		Use:   "slopeguard-edge",
		Short: "Slope risk edge runtime",
		Long: `SlopeGuard scores mine-site slope sensor readings into a composite risk,
raises alerts and serves the live dashboard API.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			if !noBanner {
				fmt.Fprintln(cmd.ErrOrStderr(), selectBanner(cmd.ErrOrStderr()))
			}
		},
	}
	root.PersistentFlags().BoolVar(&noBanner, "no-banner", false, "Do not print the startup banner")

	root.AddCommand(
		newRunCmd(),
		newValidateCmd(),
		newScoreCmd(),
		newStatsCmd(),
	)
	return root
}

// selectBanner picks the coloured banner only for terminals without NO_COLOR.
func selectBanner(w io.Writer) string {
	if os.Getenv("NO_COLOR") != "" {
		return bannerPlain
	}
	f, ok := w.(*os.File)
	if !ok || !(isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
		return bannerPlain
	}
	return bannerColor
}
