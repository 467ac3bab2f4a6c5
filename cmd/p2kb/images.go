// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/p2kb/internal/images"
)

var imagesCmd = &cobra.Command{
	Use:   "images",
	Short: "Check extracted PNG images and renumber the image catalog",
}

var imagesBlackCmd = &cobra.Command{
	Use:   "black <dir>",
	Short: "Find images that extracted as black",
	Long: `Black decodes every PNG in dir, converts it to grayscale, and reports
images whose mean brightness is below the threshold as failed extractions.`,
	Args: cobra.ExactArgs(1),
	RunE: runImagesBlack,
}

var imagesDimensionsCmd = &cobra.Command{
	Use:   "dimensions <dir>",
	Short: "List image dimensions and sizes",
	Args:  cobra.ExactArgs(1),
	RunE:  runImagesDimensions,
}

var imagesRenumberCmd = &cobra.Command{
	Use:   "renumber <catalog.md>",
	Short: "Rewrite image IDs in a catalog to a new prefix",
	Args:  cobra.ExactArgs(1),
	RunE:  runImagesRenumber,
}

func init() {
	imagesBlackCmd.Flags().Float64("threshold", 0, "mean brightness below which an image is black (default: images.black_threshold)")
	imagesBlackCmd.Flags().Int("workers", 0, "concurrent decodes (default: images.workers, or GOMAXPROCS)")
	imagesRenumberCmd.Flags().String("from", images.DefaultOldPrefix, "current ID prefix")
	imagesRenumberCmd.Flags().String("to", images.DefaultNewPrefix, "new ID prefix")

	imagesCmd.AddCommand(imagesBlackCmd)
	imagesCmd.AddCommand(imagesDimensionsCmd)
	imagesCmd.AddCommand(imagesRenumberCmd)
	rootCmd.AddCommand(imagesCmd)
}

func runImagesBlack(cmd *cobra.Command, args []string) error {
	cfg := loadConfig().Images
	threshold, _ := cmd.Flags().GetFloat64("threshold")
	if threshold <= 0 {
		threshold = cfg.BlackThreshold
	}
	workers, _ := cmd.Flags().GetInt("workers")
	if workers <= 0 {
		workers = cfg.Workers
	}

	a, err := images.Analyze(context.Background(), args[0], threshold, workers)
	if err != nil {
		return err
	}
	a.WriteText(os.Stdout, args[0])
	if a.HasFailures() {
		return fmt.Errorf("%d black image(s), %d unreadable", len(a.Black), len(a.Errors))
	}
	return nil
}

func runImagesDimensions(cmd *cobra.Command, args []string) error {
	dims, errs, err := images.Dimensions(args[0])
	if err != nil {
		return err
	}
	for _, d := range dims {
		fmt.Printf("%s: %dx%d (%.1fKB)\n", d.Name, d.Width, d.Height, d.SizeKB)
	}
	for _, e := range errs {
		fmt.Printf("failed  %s: %v\n", e.Name, e.Err)
	}
	fmt.Printf("%d images\n", len(dims))
	if len(errs) > 0 {
		return fmt.Errorf("%d image(s) unreadable", len(errs))
	}
	return nil
}

func runImagesRenumber(cmd *cobra.Command, args []string) error {
	from, _ := cmd.Flags().GetString("from")
	to, _ := cmd.Flags().GetString("to")

	snap, err := snapshotter()
	if err != nil {
		return err
	}
	changed, err := images.RenumberCatalogFile(args[0], from, to, snap)
	if err != nil {
		return err
	}
	if changed {
		fmt.Printf("updated %s: %s -> %s\n", args[0], from, to)
	} else {
		fmt.Printf("unchanged %s\n", args[0])
	}
	return nil
}
