// ABOUTME: Contract for the CRM store the client reads from and writes to
// ABOUTME: Builds queued mutations and replays them onto any Store implementation
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/harperreed/touchpoint/models"
	"github.com/harperreed/touchpoint/queue"
)

// Store is the set of interaction operations the UI depends on.
// Get returns nil, nil when the interaction does not exist.
type Store interface {
	List(ctx context.Context, q models.ListQuery) (models.Page, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Interaction, error)
	Create(ctx context.Context, in models.Interaction) (uuid.UUID, error)
	Update(ctx context.Context, id uuid.UUID, in models.Interaction) error
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteMany(ctx context.Context, ids []uuid.UUID) (int, error)
	KPIs(ctx context.Context, f models.KPIFilter) (models.KPIs, error)
}

// Searcher returns lookup candidates for a kind of related entity.
type Searcher interface {
	Search(ctx context.Context, kind models.CandidateKind, query string, limit int) ([]models.Candidate, error)
}

// Creator adds a related entity from a lookup's "create new" row.
type Creator interface {
	CreateCandidate(ctx context.Context, kind models.CandidateKind, name, parent string) (models.Candidate, error)
}

// Backend is a store that can also serve and extend lookups.
type Backend interface {
	Store
	Searcher
	Creator
}

const (
	interactionsPath = "/interactions"
	bulkDeletePath   = "/interactions/bulk-delete"
)

type bulkDeleteRequest struct {
	IDs []uuid.UUID `json:"ids"`
}

// CreateMutation wraps a new interaction for the offline queue. The id is
// assigned client-side so a replayed create is idempotent.
func CreateMutation(in models.Interaction) (queue.Mutation, error) {
	if in.ID == uuid.Nil {
		in.ID = uuid.New()
	}
	payload, err := json.Marshal(in)
	if err != nil {
		return queue.Mutation{}, fmt.Errorf("failed to encode interaction: %w", err)
	}
	return queue.Mutation{
		Method:  http.MethodPost,
		Target:  interactionsPath,
		Payload: payload,
		Headers: map[string]string{"Content-Type": "application/json"},
		Summary: "Create " + in.Title,
	}, nil
}

func UpdateMutation(id uuid.UUID, in models.Interaction) (queue.Mutation, error) {
	in.ID = id
	payload, err := json.Marshal(in)
	if err != nil {
		return queue.Mutation{}, fmt.Errorf("failed to encode interaction: %w", err)
	}
	return queue.Mutation{
		Method:  http.MethodPatch,
		Target:  interactionsPath + "/" + id.String(),
		Payload: payload,
		Headers: map[string]string{"Content-Type": "application/json"},
		Summary: "Update " + in.Title,
	}, nil
}

func DeleteMutation(id uuid.UUID, title string) queue.Mutation {
	return queue.Mutation{
		Method:  http.MethodDelete,
		Target:  interactionsPath + "/" + id.String(),
		Summary: "Delete " + title,
	}
}

func DeleteManyMutation(ids []uuid.UUID) (queue.Mutation, error) {
	payload, err := json.Marshal(bulkDeleteRequest{IDs: ids})
	if err != nil {
		return queue.Mutation{}, fmt.Errorf("failed to encode ids: %w", err)
	}
	return queue.Mutation{
		Method:  http.MethodPost,
		Target:  bulkDeletePath,
		Payload: payload,
		Headers: map[string]string{"Content-Type": "application/json"},
		Summary: fmt.Sprintf("Delete %d interactions", len(ids)),
	}, nil
}

// StoreSender replays queued mutations directly onto a Store. It is the
// queue's sender in local mode.
type StoreSender struct {
	Store Store
}

func (s StoreSender) Send(ctx context.Context, m queue.Mutation) error {
	switch {
	case m.Method == http.MethodPost && m.Target == interactionsPath:
		var in models.Interaction
		if err := json.Unmarshal(m.Payload, &in); err != nil {
			return fmt.Errorf("failed to decode interaction: %w", err)
		}
		_, err := s.Store.Create(ctx, in)
		return err

	case m.Method == http.MethodPost && m.Target == bulkDeletePath:
		var req bulkDeleteRequest
		if err := json.Unmarshal(m.Payload, &req); err != nil {
			return fmt.Errorf("failed to decode ids: %w", err)
		}
		_, err := s.Store.DeleteMany(ctx, req.IDs)
		return err

	case m.Method == http.MethodPatch:
		id, err := targetID(m.Target)
		if err != nil {
			return err
		}
		var in models.Interaction
		if err := json.Unmarshal(m.Payload, &in); err != nil {
			return fmt.Errorf("failed to decode interaction: %w", err)
		}
		return s.Store.Update(ctx, id, in)

	case m.Method == http.MethodDelete:
		id, err := targetID(m.Target)
		if err != nil {
			return err
		}
		return s.Store.Delete(ctx, id)
	}

	return fmt.Errorf("unsupported mutation %s %s", m.Method, m.Target)
}

func targetID(target string) (uuid.UUID, error) {
	rest, ok := strings.CutPrefix(target, interactionsPath+"/")
	if !ok {
		return uuid.Nil, fmt.Errorf("unexpected target %q", target)
	}
	id, err := uuid.Parse(rest)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid interaction id in %q: %w", target, err)
	}
	return id, nil
}
