package cli

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/onenote-explorer/internal/core/domain"
)

var operationsCmd = &cobra.Command{
	Use:     "operations",
	Aliases: []string{"ops"},
	Short:   "Browse the OneNote operation catalog",
}

var operationsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List available operations",
	RunE:  runOperationsList,
}

var operationsShowCmd = &cobra.Command{
	Use:   "show [name]",
	Short: "Show an operation and its parameters",
	Args:  cobra.ExactArgs(1),
	RunE:  runOperationsShow,
}

var operationsChoicesCmd = &cobra.Command{
	Use:   "choices [notebooks|sections|pages]",
	Short: "List ids that can be used as parameter values",
	Args:  cobra.ExactArgs(1),
	RunE:  runOperationsChoices,
}

// Flags for operations list.
var operationsKind string

func init() {
	operationsListCmd.Flags().StringVar(&operationsKind, "kind", "",
		"Only list operations of this kind (get, post, post-custom, delete, patch, post-multipart)")
	operationsCmd.AddCommand(operationsListCmd)
	operationsCmd.AddCommand(operationsShowCmd)
	operationsCmd.AddCommand(operationsChoicesCmd)
	rootCmd.AddCommand(operationsCmd)
}

func runOperationsList(cmd *cobra.Command, _ []string) error {
	if catalogService == nil {
		return errors.New("operation catalog not configured")
	}

	ops := catalogService.List()
	if operationsKind != "" {
		kind, err := domain.ParseOperationType(operationsKind)
		if err != nil {
			return err
		}
		ops = catalogService.ByKind(kind)
	}

	if len(ops) == 0 {
		cmd.Println("No operations available.")
		return nil
	}

	out := cmd.OutOrStdout()
	cmd.Println(paint(out, titleStyle, "Available operations:"))
	cmd.Println()
	for _, op := range ops {
		cmd.Printf("  %-40s %s\n", op.Name(), paint(out, dimStyle, strings.ToUpper(op.Kind().String())+" "+op.URLTemplate()))
	}
	return nil
}

func runOperationsShow(cmd *cobra.Command, args []string) error {
	if catalogService == nil {
		return errors.New("operation catalog not configured")
	}

	op, err := catalogService.Get(args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	cmd.Println(paint(out, titleStyle, op.Name()))
	cmd.Printf("  Kind: %s\n", op.Kind())
	cmd.Printf("  URL: %s\n", op.URLTemplate())
	cmd.Printf("  Description: %s\n", op.Description())
	if op.DocumentationLink() != "" {
		cmd.Printf("  Docs: %s\n", op.DocumentationLink())
	}
	if op.ResponseAsHTML() {
		cmd.Println("  Response: HTML")
	}

	params := op.Params()
	sources := op.ParamsSource()
	if len(params) > 0 {
		cmd.Println("  Params:")
		for _, k := range slices.Sorted(maps.Keys(params)) {
			source := ""
			if s, ok := sources[k]; ok {
				source = fmt.Sprintf(" (%s)", s)
			}
			cmd.Printf("    %s=%q%s\n", k, params[k], source)
		}
	}

	if header := op.CustomHeader(); len(header) > 0 {
		cmd.Println("  Headers:")
		for _, k := range slices.Sorted(maps.Keys(header)) {
			cmd.Printf("    %s: %s\n", k, header[k])
		}
	}
	if body := op.CustomBody(); body != "" {
		cmd.Printf("  Body: %s\n", body)
	}
	if items := op.MultipartItems(); len(items) > 0 {
		cmd.Println("  Parts:")
		for _, item := range items {
			cmd.Printf("    %s (%s, %d bytes)\n", item.Name, item.ContentType, len(item.Content))
		}
	}
	return nil
}

func runOperationsChoices(cmd *cobra.Command, args []string) error {
	if invokerService == nil {
		return errors.New("invoker not configured")
	}

	source, err := parseSource(args[0])
	if err != nil {
		return err
	}

	ctx := cmdContext(cmd)
	if err := ensureSignedIn(ctx, cmd); err != nil {
		return err
	}

	choices, err := invokerService.ListChoices(ctx, source)
	if err != nil {
		return err
	}
	if len(choices) == 0 {
		cmd.Printf("No %s found.\n", source)
		return nil
	}
	for _, c := range choices {
		cmd.Printf("  %s  %s\n", c.ID, c.Label)
	}
	return nil
}

func parseSource(s string) (domain.ParamsSource, error) {
	switch strings.ToLower(s) {
	case "notebooks":
		return domain.ParamsSourceGetNotebooks, nil
	case "sections":
		return domain.ParamsSourceGetSections, nil
	case "pages":
		return domain.ParamsSourceGetPages, nil
	default:
		return 0, fmt.Errorf("unknown source %q: want notebooks, sections or pages", s)
	}
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
