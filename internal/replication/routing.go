package replication

import (
	"errors"
	"fmt"
)

// ErrUnroutableProcess is returned when an envelope's process has no route.
var ErrUnroutableProcess = errors.New("unroutable process")

// Topic is a logical destination; Router maps it to a concrete queue name
// taken from configuration.
type Topic string

const (
	// TopicPurchases is the inbound queue consumed by this service.
	TopicPurchases Topic = "purchases"
	// TopicProducts is the products/inventory service queue.
	TopicProducts Topic = "products"
)

// Routes is the static process → topic table for outbound envelopes.
var Routes = map[Process]Topic{
	ProcessMovementUpdate:    TopicProducts,
	ProcessMovementDelete:    TopicProducts,
	ProcessProductCostUpdate: TopicProducts,

	// Reference data owned by peers flows into this service; routing them
	// lets tools and tests replay envelopes onto the inbound queue.
	ProcessCompanyUpdate:         TopicPurchases,
	ProcessCompanyDelete:         TopicPurchases,
	ProcessUserUpdate:            TopicPurchases,
	ProcessUserDelete:            TopicPurchases,
	ProcessDocumentTypeUpdate:    TopicPurchases,
	ProcessDocumentTypeDelete:    TopicPurchases,
	ProcessProductUpdate:         TopicPurchases,
	ProcessProductDelete:         TopicPurchases,
	ProcessProductCategoryUpdate: TopicPurchases,
	ProcessProductCategoryDelete: TopicPurchases,
}

// Router resolves the queue name for a process.
type Router struct {
	routes map[Process]Topic
	queues map[Topic]string
}

// NewRouter creates a router over Routes with the given topic → queue names.
func NewRouter(queues map[Topic]string) *Router {
	return &Router{routes: Routes, queues: queues}
}

// Resolve returns the queue name for process or ErrUnroutableProcess.
func (r *Router) Resolve(process Process) (string, error) {
	topic, ok := r.routes[process]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnroutableProcess, process)
	}
	queue, ok := r.queues[topic]
	if !ok || queue == "" {
		return "", fmt.Errorf("%w: %q has no queue for topic %q", ErrUnroutableProcess, process, topic)
	}
	return queue, nil
}
