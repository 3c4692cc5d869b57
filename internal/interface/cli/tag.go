package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var tagNames []string

var tagCmd = &cobra.Command{
	Use:   "tag",
	Short: "Manage conversation tags",
}

var tagAddCmd = &cobra.Command{
	Use:   "add <conversation-id>... --tag <tag>",
	Short: "Add tags to conversations",
	Long: `Add one or more tags to one or more conversations. Tags a conversation
already has are left alone.

Examples:
  chatarchive tag add 3f2a9c1e --tag work
  chatarchive tag add 3f2a 91bc --tag work --tag urgent`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTagAdd,
}

var tagListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tags with their conversation counts",
	RunE:  runTagList,
}

func init() {
	rootCmd.AddCommand(tagCmd)
	tagCmd.AddCommand(tagAddCmd, tagListCmd)
	tagAddCmd.Flags().StringSliceVarP(&tagNames, "tag", "t", nil, "Tag to add (repeatable)")
	_ = tagAddCmd.MarkFlagRequired("tag")
}

func runTagAdd(cmd *cobra.Command, args []string) error {
	database, err := openArchive()
	if err != nil {
		return err
	}
	defer func() {
		_ = database.Close()
	}()

	ids := make([]string, 0, len(args))
	for _, prefix := range args {
		id, err := database.ResolveID(prefix)
		if err != nil {
			return err
		}
		ids = append(ids, id)
	}

	updated, err := database.AddTags(ids, tagNames)
	if err != nil {
		return err
	}
	fmt.Printf("Tagged %d conversation(s)\n", updated)
	return nil
}

func runTagList(cmd *cobra.Command, args []string) error {
	database, err := openArchive()
	if err != nil {
		return err
	}
	defer func() {
		_ = database.Close()
	}()

	tags, err := database.ListTags()
	if err != nil {
		return err
	}
	if len(tags) == 0 {
		fmt.Println("No tags yet.")
		return nil
	}
	for _, t := range tags {
		fmt.Printf("%-20s %d\n", t.Tag, t.Count)
	}
	return nil
}
