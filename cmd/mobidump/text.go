package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/yuanying/mobireader/internal/markup"
	"github.com/yuanying/mobireader/internal/mobi"
)

// textOptions selects what the text subcommand prints.
type textOptions struct {
	HTML       bool
	Plain      bool
	Limit      int
	OutputPath string
}

func newTextCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "text FILE",
		Short: "Extract the book text",
		Long: `Extract the book text. By default the decompressed text is printed as
stored. --html rewrites Mobipocket links, images and page breaks into
standard HTML; --plain strips all markup.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := readCLIOptions(cmd, args)
			if err != nil {
				return err
			}
			textOpts, err := readTextOptions(cmd)
			if err != nil {
				return err
			}

			f, err := openBook(opts)
			if err != nil {
				return err
			}
			defer f.Close()

			text, textErr := extractText(f.Document, textOpts)
			if textErr != nil && text == "" {
				return textErr
			}

			if err := writeOutput(cmd.OutOrStdout(), textOpts.OutputPath, text); err != nil {
				return err
			}
			if textErr != nil {
				return fmt.Errorf("text is incomplete: %w", textErr)
			}
			opts.Logger.Debug("extracted text", "bytes", len(text))
			return nil
		},
	}

	flags := cmd.Flags()
	flags.Bool("html", false, "Rewrite Mobipocket markup into standard HTML")
	flags.Bool("plain", false, "Strip markup and print plain text")
	flags.Int("limit", -1, "Stop after the text record that passes this many bytes (-1: no limit)")
	flags.StringP("output", "o", "", "Output file path (default: stdout)")
	cmd.MarkFlagsMutuallyExclusive("html", "plain")
	return cmd
}

func readTextOptions(cmd *cobra.Command) (textOptions, error) {
	var opts textOptions
	opts.HTML, _ = cmd.Flags().GetBool("html")
	opts.Plain, _ = cmd.Flags().GetBool("plain")
	opts.Limit, _ = cmd.Flags().GetInt("limit")
	opts.OutputPath, _ = cmd.Flags().GetString("output")

	if opts.Limit < -1 {
		return opts, fmt.Errorf("--limit must be -1 or greater: %d", opts.Limit)
	}
	if opts.Limit >= 0 && (opts.HTML || opts.Plain) {
		return opts, fmt.Errorf("--limit cannot be combined with --html or --plain")
	}
	return opts, nil
}

// extractText returns the text in the requested form. A decoding error
// may come with the partial text decoded before it.
func extractText(d *mobi.Document, opts textOptions) (string, error) {
	switch {
	case opts.Limit >= 0:
		return d.TextLimit(opts.Limit)
	case opts.HTML:
		return d.HTML()
	case opts.Plain:
		html, err := d.HTML()
		if html == "" || !markup.IsHTML(html) {
			return html, err
		}
		text, perr := markup.PlainText(html)
		if perr != nil {
			return "", perr
		}
		return text, err
	default:
		return d.Text()
	}
}

func writeOutput(stdout io.Writer, path, text string) error {
	if path == "" || path == "-" {
		_, err := io.WriteString(stdout, text)
		return err
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
