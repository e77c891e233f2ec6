package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/yuanying/mobireader/internal/mobi"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var labelCaser = cases.Title(language.English)

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info FILE",
		Short: "Print container details and metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := readCLIOptions(cmd, args)
			if err != nil {
				return err
			}
			f, err := openBook(opts)
			if err != nil {
				return err
			}
			defer f.Close()

			writeInfo(cmd.OutOrStdout(), f.Document)
			return nil
		},
	}
}

func writeInfo(w io.Writer, d *mobi.Document) {
	field := func(name string, value any) {
		fmt.Fprintf(w, "%-14s %v\n", name+":", value)
	}

	field("Name", d.Name())
	field("Type", d.FileType())
	field("Compression", d.Compression())
	field("Text records", d.TextRecordCount())
	field("DRM", yesNo(d.HasDRM()))
	field("Images", d.ImageCount())
	if i := d.CoverIndex(); i >= 0 {
		field("Cover", i)
	}

	meta := d.Metadata()
	if _, ok := meta[mobi.Title]; !ok && d.Name() != "" {
		meta[mobi.Title] = d.Name()
	}
	for _, key := range mobi.MetaKeys {
		if v, ok := meta[key]; ok {
			field(labelCaser.String(key.String()), v)
		}
	}

	field("Valid", yesNo(d.Valid()))
	if err := d.Err(); err != nil {
		field("Error", err)
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
