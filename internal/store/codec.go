// Package store implements change.ReferenceStore on memory, SQLite and
// Redis.
package store

import (
	"encoding/json"
	"fmt"

	"optionflow/internal/change"
	"optionflow/models"
)

// record is the persisted form of a change reference.
type record struct {
	Revision int64            `json:"revision"`
	Future   models.FutureRow `json:"future"`
}

func encodeFuture(f models.FutureQuote) ([]byte, error) {
	data, err := json.Marshal(models.NewFutureRow(f))
	if err != nil {
		return nil, fmt.Errorf("encode reference: %w", err)
	}
	return data, nil
}

func decodeFuture(data []byte) (models.FutureQuote, error) {
	var row models.FutureRow
	if err := json.Unmarshal(data, &row); err != nil {
		return models.FutureQuote{}, fmt.Errorf("decode reference: %w", err)
	}
	q, err := row.Quote()
	if err != nil {
		return models.FutureQuote{}, fmt.Errorf("decode reference: %w", err)
	}
	return q, nil
}

func conflict(expected, actual int64) error {
	return fmt.Errorf("%w: expected revision %d, found %d", change.ErrReferenceConflict, expected, actual)
}
