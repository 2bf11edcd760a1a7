// Package store persists participant records.
package store

import (
	"context"

	"github.com/tradelab-io/statsync/internal/types"
)

// ParticipantStore is the outbound collaborator owning participant records.
// This subsystem only reads and writes the csv-url and stats sub-fields;
// record lifecycle (creation, deletion, billing data) is owned elsewhere.
type ParticipantStore interface {
	// FindByToken returns the participant with the given token, or an
	// error carrying ErrCodeParticipantNotFound.
	FindByToken(ctx context.Context, token string) (*types.Participant, error)
	// Upsert writes the participant record, atomically per participant.
	Upsert(ctx context.Context, p types.Participant) error
	// List returns all participants.
	List(ctx context.Context) ([]types.Participant, error)
	// Close releases the underlying resources.
	Close() error
}
