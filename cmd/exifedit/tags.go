package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/vbonduro/exifedit/internal/domain"
	"github.com/vbonduro/exifedit/internal/metadata"
	"github.com/vbonduro/exifedit/internal/tagform"
)

var tagsCmd = &cobra.Command{
	Use:   "tags",
	Short: "Read or write the tags of a single image file",
}

var tagsShowCmd = &cobra.Command{
	Use:   "show <file>",
	Short: "Print the editable tags of an image",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		codec, err := newCodec(env.cfg, env.logger)
		if err != nil {
			return err
		}
		defer closeCodec(codec, env.logger)

		tags, err := readFileTags(cmd, codec, args[0])
		if err != nil {
			return err
		}
		return printTags(cmd.OutOrStdout(), tagform.New(tags))
	},
}

var tagsSetCmd = &cobra.Command{
	Use:   "set <file>",
	Short: "Change tags of an image in place",
	Long: "Change tags of an image in place. Only the flags given are changed, " +
		"but nothing is written unless all five tags pass validation afterwards.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		codec, err := newCodec(env.cfg, env.logger)
		if err != nil {
			return err
		}
		defer closeCodec(codec, env.logger)

		tags, err := readFileTags(cmd, codec, args[0])
		if err != nil {
			return err
		}

		changed := false
		for _, name := range domain.TagNames {
			flag := string(name)
			if !cmd.Flags().Changed(flag) {
				continue
			}
			v, _ := cmd.Flags().GetString(flag)
			tags = tags.With(name, v)
			changed = true
		}
		if !changed {
			return errors.New("no tags given; see --help for the available flags")
		}

		form := tagform.New(tags)
		if !form.Valid() {
			var bad []string
			for _, f := range form.Fields() {
				if !f.Valid {
					bad = append(bad, fmt.Sprintf("%s %q", strings.ToLower(f.Label), f.Value))
				}
			}
			return fmt.Errorf("invalid tags: %s", strings.Join(bad, ", "))
		}

		if err := codec.Write(cmd.Context(), args[0], form.Tags()); err != nil {
			return fmt.Errorf("failed to write tags: %w", err)
		}
		env.logger.Info("tags written", "file", args[0])
		return printTags(cmd.OutOrStdout(), form)
	},
}

// readFileTags decodes the tags of path. A file without metadata yields an
// empty TagSet.
func readFileTags(cmd *cobra.Command, codec metadata.Codec, path string) (domain.TagSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return domain.TagSet{}, fmt.Errorf("failed to open image: %w", err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			env.logger.Error("failed to close image", "file", path, "error", err)
		}
	}()

	tags, err := codec.Read(cmd.Context(), f)
	if errors.Is(err, metadata.ErrNoMetadata) {
		return domain.TagSet{}, nil
	}
	if err != nil {
		return domain.TagSet{}, fmt.Errorf("failed to read tags: %w", err)
	}
	return tags, nil
}

func printTags(w io.Writer, form *tagform.State) error {
	for _, f := range form.Fields() {
		mark := ""
		if f.Value != "" && !f.Valid {
			mark = "  (invalid)"
		}
		if _, err := fmt.Fprintf(w, "%-14s %s%s\n", f.Label+":", f.Value, mark); err != nil {
			return err
		}
	}
	return nil
}

func init() {
	rootCmd.AddCommand(tagsCmd)
	tagsCmd.AddCommand(tagsShowCmd, tagsSetCmd)

	tagsSetCmd.Flags().String(string(domain.TagDateTime), "", `Capture date, "YYYY:MM:DD HH:MM:SS"`)
	tagsSetCmd.Flags().String(string(domain.TagLatitude), "", `GPS latitude, "d/1,m/1,s/100" or signed decimal degrees`)
	tagsSetCmd.Flags().String(string(domain.TagLongitude), "", `GPS longitude, "d/1,m/1,s/100" or signed decimal degrees`)
	tagsSetCmd.Flags().String(string(domain.TagMake), "", "Device manufacturer")
	tagsSetCmd.Flags().String(string(domain.TagModel), "", "Device model")
}
