package driving

import (
	"context"

	"github.com/custodia-labs/onenote-explorer/internal/core/domain"
)

// Catalog provides the built-in OneNote operations.
type Catalog interface {
	// List returns all operations in registration order.
	List() []*domain.Operation

	// Get returns an operation by name.
	// Returns ErrNotFound if the operation doesn't exist.
	Get(name string) (*domain.Operation, error)

	// ByKind returns all operations of the given kind.
	ByKind(kind domain.OperationType) []*domain.Operation
}

// Choice is a selectable value for a parameter drawn from a list response.
type Choice struct {
	ID    string
	Label string
}

// Invoker turns an Operation and user-supplied values into a request.
type Invoker interface {
	// Invoke issues the request for op. values override op.Params().
	Invoke(ctx context.Context, op *domain.Operation, values map[string]string) <-chan domain.Result

	// ListChoices fetches selectable values for a parameter source.
	ListChoices(ctx context.Context, source domain.ParamsSource) ([]Choice, error)
}
