package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wundergraph/graphiql-fetcher/pkg/definitionlookup"
	"github.com/wundergraph/graphiql-fetcher/pkg/document"
)

var errNoDefinition = errors.New("no definition at position")

var (
	locateOffset int
	locateEnd    int
	locateLine   int
	locateColumn int
)

// locateCmd represents the locate command
var locateCmd = &cobra.Command{
	Use:   "locate [file]",
	Short: "locate prints the operation or fragment enclosing a position",
	Long: `locate parses a GraphQL document from file or stdin and prints kind, name and element id
of the top-level definition enclosing the position. The position is either a character offset
range (--offset, --end) or a one based line and column.`,
	Example: `locate --offset 42 query.graphql
locate --line 3 --column 7 query.graphql`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := readDocument(cmd, args)
		if err != nil {
			return err
		}

		doc, err := document.Parse(text)
		if err != nil {
			return err
		}

		var position definitionlookup.Position
		switch {
		case locateOffset >= 0:
			end := locateEnd
			if end < 0 {
				end = locateOffset
			}
			position = definitionlookup.Position{Start: locateOffset, End: end}
		case locateLine > 0 && locateColumn > 0:
			index, ok := definitionlookup.IndexFromCursor(text, definitionlookup.Cursor{Line: locateLine - 1, Ch: locateColumn - 1})
			if !ok {
				return fmt.Errorf("line %d is outside of the document", locateLine)
			}
			position = definitionlookup.Position{Start: index, End: index}
		default:
			return errors.New("either --offset or --line and --column are required")
		}

		cfg := loadConfig()
		log, syncLogger, err := newLogger(cfg.logLevel)
		if err != nil {
			return err
		}
		defer syncLogger()

		identifier, ok := definitionlookup.NewResolver(definitionlookup.WithLogger(log)).ResolveDefinitionAt(doc, position)
		if !ok {
			return errNoDefinition
		}

		_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", identifier.Kind, identifier.Name, identifier.ElementID())
		return err
	},
}

func init() {
	rootCmd.AddCommand(locateCmd)

	locateCmd.Flags().IntVar(&locateOffset, "offset", -1, "character offset of the position start")
	locateCmd.Flags().IntVar(&locateEnd, "end", -1, "character offset of the position end (defaults to --offset)")
	locateCmd.Flags().IntVar(&locateLine, "line", 0, "one based line of the position")
	locateCmd.Flags().IntVar(&locateColumn, "column", 0, "one based column of the position")
}
