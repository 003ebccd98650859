package cli

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"net/http"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/onenote-explorer/internal/core/domain"
)

var invokeCmd = &cobra.Command{
	Use:   "invoke [operation-name]",
	Short: "Send the request for an operation and print the response",
	Long: `Send the request for a catalog operation and print the response.

Parameters default to the values shown by 'onenote-explorer operations show'.
Override them with -p key=value. When a notebook, section or page id is
missing and stdin is a terminal, you are asked to pick one.

Examples:
  onenote-explorer invoke "Get notebooks"
  onenote-explorer invoke "Get pages in section" -p sectionId=1-abc
  onenote-explorer invoke "Create simple page" -p sectionId=1-abc -p title="Standup"`,
	Args: cobra.ExactArgs(1),
	RunE: runInvoke,
}

// Flags for invoke.
var (
	invokeParams []string
	invokeRaw    bool
)

func init() {
	invokeCmd.Flags().StringArrayVarP(&invokeParams, "param", "p", nil,
		"Parameter key=value pairs (can be repeated)")
	invokeCmd.Flags().BoolVar(&invokeRaw, "raw", false, "Print the response body exactly as received")
	rootCmd.AddCommand(invokeCmd)
}

func runInvoke(cmd *cobra.Command, args []string) error {
	if catalogService == nil || invokerService == nil {
		return errors.New("invoker not configured")
	}

	op, err := catalogService.Get(args[0])
	if err != nil {
		return err
	}

	values, err := parseParams(invokeParams)
	if err != nil {
		return err
	}

	ctx := cmdContext(cmd)
	if err := ensureSignedIn(ctx, cmd); err != nil {
		return err
	}

	if isTerminal(os.Stdin) {
		if err := pickMissing(cmd, op, values, os.Stdin); err != nil {
			return err
		}
	}

	resp, err := domain.Await(ctx, invokerService.Invoke(ctx, op, values))
	if err != nil {
		return renderFailure(cmd, err)
	}
	return renderResponse(cmd, resp, invokeRaw)
}

func parseParams(pairs []string) (map[string]string, error) {
	values := make(map[string]string, len(pairs))
	for _, kv := range pairs {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid param format: %s (expected key=value)", kv)
		}
		values[k] = v
	}
	return values, nil
}

// pickMissing prompts for every picker-backed parameter that has no value.
func pickMissing(cmd *cobra.Command, op *domain.Operation, values map[string]string, in io.Reader) error {
	defaults := op.Params()
	sources := op.ParamsSource()
	reader := bufio.NewReader(in)

	for _, key := range slices.Sorted(maps.Keys(sources)) {
		source := sources[key]
		if source == domain.ParamsSourceTextEdit || values[key] != "" || defaults[key] != "" {
			continue
		}

		choices, err := invokerService.ListChoices(cmdContext(cmd), source)
		if err != nil {
			return err
		}
		if len(choices) == 0 {
			return fmt.Errorf("no %s to choose %s from", source, key)
		}

		cmd.Printf("Choose %s:\n", key)
		for i, c := range choices {
			cmd.Printf("  %d) %s\n", i+1, c.Label)
		}
		cmd.Print("> ")

		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("read choice: %w", err)
		}
		n, err := strconv.Atoi(strings.TrimSpace(line))
		if err != nil || n < 1 || n > len(choices) {
			return fmt.Errorf("invalid choice %q", strings.TrimSpace(line))
		}
		values[key] = choices[n-1].ID
	}
	return nil
}

func renderResponse(cmd *cobra.Command, resp *domain.Response, raw bool) error {
	out := cmd.OutOrStdout()
	cmd.Println(paint(out, okStyle, fmt.Sprintf("%d %s", resp.StatusCode, statusText(resp.StatusCode))))

	if raw {
		_, err := out.Write(resp.Raw)
		return err
	}

	switch body := resp.Body.(type) {
	case nil:
		return nil
	case string:
		cmd.Println(body)
		return nil
	default:
		pretty, err := json.MarshalIndent(body, "", "  ")
		if err != nil {
			return fmt.Errorf("format response: %w", err)
		}
		cmd.Println(string(pretty))
		return nil
	}
}

// renderFailure prints what the server sent, then returns err for the exit code.
func renderFailure(cmd *cobra.Command, err error) error {
	errOut := cmd.ErrOrStderr()

	var se *domain.StatusError
	if errors.As(err, &se) {
		cmd.PrintErrln(paint(errOut, errorStyle, fmt.Sprintf("%d %s", se.StatusCode, statusText(se.StatusCode))))
		if len(se.Body) > 0 {
			cmd.PrintErrln(indentJSON(se.Body))
		}
		return err
	}

	var pe *domain.ParseError
	if errors.As(err, &pe) {
		cmd.PrintErrln(paint(errOut, errorStyle, "Response could not be parsed"))
		cmd.PrintErrln(string(pe.Body))
	}
	return err
}

func indentJSON(raw []byte) string {
	var v any
	if json.Unmarshal(raw, &v) != nil {
		return string(raw)
	}
	pretty, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return string(raw)
	}
	return string(pretty)
}

func statusText(code int) string {
	if text := http.StatusText(code); text != "" {
		return text
	}
	return "Unknown Status"
}
