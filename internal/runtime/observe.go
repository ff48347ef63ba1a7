package runtime

import (
	"github.com/aretw0/muster/pkg/domain"
	"github.com/aretw0/muster/pkg/schema"
)

// observeType wraps a subscription target so every subscriber of the same node
// shares one entry resolving it all the way to a static result, errors and
// pending included.
var observeType = &domain.NodeType{
	Name:  "observe",
	Shape: schema.Schema{"target": schema.Any()},
	Operations: map[string]*domain.OperationHandler{
		domain.OpEvaluate: observeHandler,
	},
}

var observeHandler = &domain.OperationHandler{
	GetDependencies: func(def *domain.Definition, _ *domain.Operation) []domain.Dependency {
		return []domain.Dependency{{Target: def.Get("target"), AllowErrors: true, AllowPending: true}}
	},
	Run: func(inv domain.Invocation) (domain.Result, error) {
		return inv.Dependencies()[0], nil
	},
}

func observe(node *domain.GraphNode) *domain.Definition {
	return domain.Must(observeType, domain.Properties{"target": node})
}
