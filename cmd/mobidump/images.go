package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/spf13/cobra"
	"github.com/yuanying/mobireader/internal/mobi"
)

// imagesOptions controls image export.
type imagesOptions struct {
	OutputDir       string
	ThumbnailWidth  int
	ThumbnailHeight int
}

func newImagesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "images FILE",
		Short: "Export the book images",
		Long: `Export every image record as a file named after its 1-based
recindex (image0001.jpg, image0002.png, ...). With --thumbnail the cover,
or the first image when the book names no cover, is also scaled down and
saved as thumbnail.png.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := readCLIOptions(cmd, args)
			if err != nil {
				return err
			}
			imgOpts, err := readImagesOptions(cmd, opts.InputPath)
			if err != nil {
				return err
			}

			f, err := openBook(opts)
			if err != nil {
				return err
			}
			defer f.Close()

			paths, err := exportImages(f.Document, imgOpts)
			for _, p := range paths {
				fmt.Fprintln(cmd.OutOrStdout(), p)
			}
			if err != nil {
				return err
			}
			opts.Logger.Info("exported images", "count", len(paths), "dir", imgOpts.OutputDir)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringP("output", "o", "", "Output directory (default: input path without extension + _images)")
	flags.String("thumbnail", "", "Also save a cover thumbnail fitting WIDTHxHEIGHT, e.g. 200x300")
	return cmd
}

func readImagesOptions(cmd *cobra.Command, inputPath string) (imagesOptions, error) {
	var opts imagesOptions
	opts.OutputDir, _ = cmd.Flags().GetString("output")
	if opts.OutputDir == "" {
		opts.OutputDir = defaultImagesDir(inputPath)
	}

	thumb, _ := cmd.Flags().GetString("thumbnail")
	if thumb != "" {
		w, h, err := parseSize(thumb)
		if err != nil {
			return opts, fmt.Errorf("--thumbnail: %w", err)
		}
		opts.ThumbnailWidth, opts.ThumbnailHeight = w, h
	}
	return opts, nil
}

// parseSize parses "WIDTHxHEIGHT".
func parseSize(s string) (int, int, error) {
	ws, hs, ok := strings.Cut(strings.ToLower(s), "x")
	if !ok {
		return 0, 0, fmt.Errorf("size %q is not WIDTHxHEIGHT", s)
	}
	w, err := strconv.Atoi(ws)
	if err != nil || w <= 0 {
		return 0, 0, fmt.Errorf("invalid width in %q", s)
	}
	h, err := strconv.Atoi(hs)
	if err != nil || h <= 0 {
		return 0, 0, fmt.Errorf("invalid height in %q", s)
	}
	return w, h, nil
}

// imageExt maps an image format name to a file extension.
func imageExt(format string) string {
	switch format {
	case "jpeg":
		return ".jpg"
	case "tiff":
		return ".tif"
	default:
		return "." + format
	}
}

// exportImages writes every image of d into opts.OutputDir and returns the
// paths written.
func exportImages(d *mobi.Document, opts imagesOptions) ([]string, error) {
	n := d.ImageCount()
	if n == 0 && opts.ThumbnailWidth == 0 {
		return nil, nil
	}
	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	var paths []string
	for i := range n {
		data, err := d.ImageData(i)
		if err != nil {
			return paths, fmt.Errorf("image %d: %w", i+1, err)
		}
		format, err := d.ImageFormat(i)
		if err != nil {
			return paths, err
		}
		path := filepath.Join(opts.OutputDir, fmt.Sprintf("image%04d%s", i+1, imageExt(format)))
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return paths, fmt.Errorf("failed to write %s: %w", path, err)
		}
		paths = append(paths, path)
	}

	if opts.ThumbnailWidth > 0 {
		thumb, err := d.Thumbnail(opts.ThumbnailWidth, opts.ThumbnailHeight)
		if err != nil {
			return paths, fmt.Errorf("thumbnail: %w", err)
		}
		path := filepath.Join(opts.OutputDir, "thumbnail.png")
		if err := imaging.Save(thumb, path); err != nil {
			return paths, fmt.Errorf("failed to save thumbnail: %w", err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}
