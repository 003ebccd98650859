package services

import (
	"context"
	"fmt"
	"maps"

	"github.com/custodia-labs/onenote-explorer/internal/core/domain"
	"github.com/custodia-labs/onenote-explorer/internal/core/ports/driving"
	"github.com/custodia-labs/onenote-explorer/internal/logger"
)

// Ensure Invoker implements the interface.
var _ driving.Invoker = (*Invoker)(nil)

// maxChoicePages bounds how many @odata.nextLink pages ListChoices follows.
const maxChoicePages = 10

// Invoker maps an Operation onto the dispatcher verb for its kind.
type Invoker struct {
	dispatcher driving.Dispatcher
}

// NewInvoker creates an invoker over dispatcher.
func NewInvoker(dispatcher driving.Dispatcher) *Invoker {
	return &Invoker{dispatcher: dispatcher}
}

// Invoke merges values over op's default params, fills the URL template and
// issues the request. Failures before dispatch are delivered on the channel.
func (i *Invoker) Invoke(ctx context.Context, op *domain.Operation, values map[string]string) <-chan domain.Result {
	merged := op.Params()
	if merged == nil {
		merged = make(map[string]string, len(values))
	}
	maps.Copy(merged, values)

	path, rest, err := op.ResolvePath(merged)
	if err != nil {
		return domain.Fail(fmt.Errorf("operation %q: %w", op.Name(), err))
	}
	// Unfilled optional parameters are not sent.
	maps.DeleteFunc(rest, func(_, v string) bool { return v == "" })

	logger.Debug("invoke %q: %s %s", op.Name(), op.Kind(), path)

	switch op.Kind() {
	case domain.OperationGet:
		return i.dispatcher.Get(ctx, path, rest, op.ResponseAsHTML())
	case domain.OperationPost:
		return i.dispatcher.Post(ctx, path, rest)
	case domain.OperationPostCustom:
		return i.dispatcher.PostCustom(ctx, path, op.CustomHeader(), op.ResolveBody(merged))
	case domain.OperationDelete:
		return i.dispatcher.Delete(ctx, path, rest)
	case domain.OperationPatch:
		return i.dispatcher.Patch(ctx, path, rest)
	case domain.OperationPostMultipart:
		return i.dispatcher.PostMultipart(ctx, path, rest, op.MultipartItems())
	default:
		return domain.Fail(&domain.ConstructionError{Name: op.Name(), Kind: op.Kind(), Reason: "unsupported kind"})
	}
}

// ListChoices fetches the notebooks, sections or pages a parameter can be
// picked from. Text parameters have no choices.
func (i *Invoker) ListChoices(ctx context.Context, source domain.ParamsSource) ([]driving.Choice, error) {
	var (
		path  string
		label string
	)
	switch source {
	case domain.ParamsSourceGetNotebooks:
		path, label = "notebooks", "displayName"
	case domain.ParamsSourceGetSections:
		path, label = "sections", "displayName"
	case domain.ParamsSourceGetPages:
		path, label = "pages", "title"
	default:
		return nil, nil
	}

	query := map[string]string{"$select": "id," + label}
	var choices []driving.Choice
	for page := 0; page < maxChoicePages && path != ""; page++ {
		resp, err := domain.Await(ctx, i.dispatcher.Get(ctx, path, query, false))
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", source, err)
		}

		items, next, err := parseCollection(resp)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", source, err)
		}
		for _, item := range items {
			id, _ := item["id"].(string)
			if id == "" {
				continue
			}
			name, _ := item[label].(string)
			choices = append(choices, driving.Choice{ID: id, Label: name})
		}

		// nextLink already carries the query.
		path, query = next, nil
	}

	return choices, nil
}

// parseCollection extracts the value array and @odata.nextLink of a Graph
// collection response.
func parseCollection(resp *domain.Response) ([]map[string]any, string, error) {
	body, ok := resp.Body.(map[string]any)
	if !ok {
		return nil, "", &domain.ParseError{
			StatusCode:  resp.StatusCode,
			ContentType: resp.Header.Get("Content-Type"),
			Body:        resp.Raw,
			Err:         fmt.Errorf("expected a JSON object, got %T", resp.Body),
		}
	}

	raw, _ := body["value"].([]any)
	items := make([]map[string]any, 0, len(raw))
	for _, v := range raw {
		if m, ok := v.(map[string]any); ok {
			items = append(items, m)
		}
	}

	next, _ := body["@odata.nextLink"].(string)
	return items, next, nil
}
