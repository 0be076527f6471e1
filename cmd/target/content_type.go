package target

import (
	"fmt"
	"io"
	"slices"
	"sort"
	"strings"

	"firesync/cmd/cmdutil"
	"firesync/internal/cms"
	"firesync/internal/cms/wordpress"
	"firesync/internal/config"

	"github.com/spf13/cobra"
)

var enableFields []string

var contentTypeCmd = &cobra.Command{
	Use:   "content-type",
	Short: "Manage content type targets and their field selection",
}

var contentTypeEnableCmd = &cobra.Command{
	Use:     "enable <slug>",
	Short:   "Enable sync for a content type",
	Example: `firesync target content-type enable book --fields post_title,meta_isbn,taxonomy_genre,featured_image`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		wiring, err := cmdutil.Bootstrap()
		if err != nil {
			return err
		}
		defer wiring.Close()

		client, err := wiring.InitWordPress()
		if err != nil {
			return err
		}
		exists, err := client.ContentTypeExists(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("failed to check content type %s: %w", args[0], err)
		}
		if !exists {
			return fmt.Errorf("content type %s does not exist", args[0])
		}

		store := wiring.InitTargetStore()
		target := config.ContentTypeConfig{Slug: args[0], Fields: enableFields}
		if existing, ok := store.ContentTypeConfig(args[0]); ok {
			target.FieldMapping = existing.FieldMapping
			if !cmd.Flags().Changed("fields") {
				target.Fields = existing.Fields
			}
		}
		if err := store.EnableContentType(target); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Content type %s enabled\n", args[0])
		return nil
	},
}

var contentTypeDisableCmd = &cobra.Command{
	Use:   "disable <slug>",
	Short: "Disable sync for a content type",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		wiring, err := cmdutil.Bootstrap()
		if err != nil {
			return err
		}
		defer wiring.Close()

		if err := wiring.InitTargetStore().DisableContentType(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Content type %s disabled\n", args[0])
		return nil
	},
}

var contentTypeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List enabled content types with their fields",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cmdutil.ValidateFormat(listFormat); err != nil {
			return err
		}
		cfg, err := cmdutil.LoadConfig()
		if err != nil {
			return err
		}
		return cmdutil.Render(cmd.OutOrStdout(), listFormat, cfg.ContentTypes, func(w io.Writer) {
			writeContentTypeTable(w, cfg.ContentTypes)
		})
	},
}

var fieldsCmd = &cobra.Command{
	Use:   "fields",
	Short: "Edit the fields selected for a content type",
	Long: `Field identifiers select what is copied into each document:
  featured_image      the primary image
  meta_<key>          a metadata value
  acf_<key>           a custom field
  taxonomy_<slug>     the item's terms in a taxonomy (tax_<slug> also works)
  anything else       an intrinsic post property such as post_title`,
}

var fieldsSetCmd = &cobra.Command{
	Use:     "set <content-type> <field>...",
	Short:   "Replace the field selection",
	Example: `firesync target content-type fields set book post_title meta_isbn`,
	Args:    cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return updateFields(cmd, args[0], func([]string) []string { return args[1:] })
	},
}

var fieldsAddCmd = &cobra.Command{
	Use:     "add <content-type> <field>...",
	Short:   "Add fields to the selection",
	Example: `firesync target content-type fields add book featured_image`,
	Args:    cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return updateFields(cmd, args[0], func(fields []string) []string { return addFields(fields, args[1:]) })
	},
}

var fieldsRemoveCmd = &cobra.Command{
	Use:     "remove <content-type> <field>...",
	Short:   "Remove fields from the selection",
	Example: `firesync target content-type fields remove book meta_isbn`,
	Args:    cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return updateFields(cmd, args[0], func(fields []string) []string { return removeFields(fields, args[1:]) })
	},
}

var fieldsMapCmd = &cobra.Command{
	Use:   "map <content-type> <field> [destination]",
	Short: "Rename a field in the destination document",
	Long:  `Write the field under a different key. Omitting the destination removes the rename.`,
	Example: `  firesync target content-type fields map book post_title title
  firesync target content-type fields map book post_title`,
	Args: cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		wiring, err := cmdutil.Bootstrap()
		if err != nil {
			return err
		}
		defer wiring.Close()

		store := wiring.InitTargetStore()
		existing, ok := store.ContentTypeConfig(args[0])
		if !ok {
			return fmt.Errorf("content type %s is not enabled", args[0])
		}
		if !slices.Contains(existing.Fields, args[1]) {
			return fmt.Errorf("field %s is not selected for %s", args[1], args[0])
		}

		destination := ""
		if len(args) == 3 {
			destination = args[2]
		}
		if err := store.SetFieldMapping(args[0], args[1], destination); err != nil {
			return err
		}
		if destination == "" {
			fmt.Fprintf(cmd.OutOrStdout(), "Field %s of %s is written under its own name\n", args[1], args[0])
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "Field %s of %s is written as %s\n", args[1], args[0], destination)
		}
		return nil
	},
}

var fieldsAvailableCmd = &cobra.Command{
	Use:   "available <content-type>",
	Short: "List the fields that can be selected for a content type",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		wiring, err := cmdutil.Bootstrap()
		if err != nil {
			return err
		}
		defer wiring.Close()

		client, err := wiring.InitWordPress()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		var custom []cms.FieldInfo
		if client.IsActive(ctx) {
			if custom, err = client.ListFieldsForType(ctx, args[0]); err != nil {
				return err
			}
		}
		metaKeys, err := client.ListMetaKeysForType(ctx, args[0])
		if err != nil {
			return err
		}
		types, err := client.ListContentTypes(ctx)
		if err != nil {
			return err
		}
		var taxonomies []string
		for _, t := range types {
			if t.Slug == args[0] {
				taxonomies = t.Taxonomies
			}
		}

		writeAvailable(cmd.OutOrStdout(), availableFields(custom, metaKeys, taxonomies))
		return nil
	},
}

func init() {
	contentTypeEnableCmd.Flags().StringSliceVar(&enableFields, "fields", nil, "comma separated field identifiers")

	fieldsCmd.AddCommand(fieldsSetCmd)
	fieldsCmd.AddCommand(fieldsAddCmd)
	fieldsCmd.AddCommand(fieldsRemoveCmd)
	fieldsCmd.AddCommand(fieldsMapCmd)
	fieldsCmd.AddCommand(fieldsAvailableCmd)

	contentTypeCmd.AddCommand(contentTypeEnableCmd)
	contentTypeCmd.AddCommand(contentTypeDisableCmd)
	contentTypeCmd.AddCommand(contentTypeListCmd)
	contentTypeCmd.AddCommand(fieldsCmd)
}

func updateFields(cmd *cobra.Command, slug string, update func([]string) []string) error {
	wiring, err := cmdutil.Bootstrap()
	if err != nil {
		return err
	}
	defer wiring.Close()

	store := wiring.InitTargetStore()
	if err := store.UpdateFields(slug, update); err != nil {
		return err
	}
	ct, _ := store.ContentTypeConfig(slug)
	fmt.Fprintf(cmd.OutOrStdout(), "Fields of %s: %s\n", slug, cmdutil.Dash(strings.Join(ct.Fields, ", ")))
	return nil
}

func addFields(fields, add []string) []string {
	for _, f := range add {
		if !slices.Contains(fields, f) {
			fields = append(fields, f)
		}
	}
	return fields
}

func removeFields(fields, remove []string) []string {
	return slices.DeleteFunc(fields, func(f string) bool { return slices.Contains(remove, f) })
}

func formatMapping(mapping []config.FieldRename) string {
	pairs := make([]string, 0, len(mapping))
	for _, r := range mapping {
		pairs = append(pairs, r.Field+"->"+r.Destination)
	}
	sort.Strings(pairs)
	return strings.Join(pairs, ", ")
}

type availableField struct {
	Identifier string
	Source     string
	Detail     string
}

func availableFields(custom []cms.FieldInfo, metaKeys, taxonomies []string) []availableField {
	var out []availableField
	for _, name := range wordpress.IntrinsicProperties() {
		out = append(out, availableField{Identifier: name, Source: "property"})
	}
	out = append(out, availableField{Identifier: "featured_image", Source: "image", Detail: "url, width, height"})
	for _, key := range metaKeys {
		out = append(out, availableField{Identifier: "meta_" + key, Source: "meta"})
	}
	for _, slug := range taxonomies {
		out = append(out, availableField{Identifier: "taxonomy_" + slug, Source: "taxonomy"})
	}
	for _, f := range custom {
		out = append(out, availableField{Identifier: "acf_" + f.Key, Source: "custom field", Detail: f.Label + " (" + f.Type + ")"})
	}
	return out
}

func writeAvailable(w io.Writer, fields []availableField) {
	table := cmdutil.NewTable(w, "Identifier", "Source", "Detail")
	for _, f := range fields {
		table.Append([]string{f.Identifier, f.Source, cmdutil.Dash(f.Detail)})
	}
	table.Render()
}
