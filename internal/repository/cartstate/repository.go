// Package cartstate persists each client's cart as a single serialized blob.
package cartstate

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/cockroachdb/errors"

	"storefront/internal/domain"
)

// Repository loads and saves the cart blob of a client id. Load never fails on a
// missing or malformed blob; it returns an empty state instead.
type Repository interface {
	Load(ctx context.Context, clientID string) (domain.CartState, error)
	Save(ctx context.Context, clientID string, state domain.CartState) error
	Delete(ctx context.Context, clientID string) error
}

// Encode serializes state as {"lines":[...],"remoteSessionId":"..."}.
func Encode(state domain.CartState) ([]byte, error) {
	state.Lines = domain.CloneLines(state.Lines)
	blob, err := json.Marshal(state)
	if err != nil {
		return nil, errors.Wrap(err, "encode cart state")
	}
	return blob, nil
}

// Decode parses a blob. The second result is false when the blob was present but could
// not be used, in which case the returned state is empty.
func Decode(blob []byte) (domain.CartState, bool) {
	if len(blob) == 0 {
		return domain.CartState{}, true
	}
	var state domain.CartState
	if err := json.Unmarshal(blob, &state); err != nil {
		return domain.CartState{}, false
	}
	return normalize(state), true
}

// normalize drops lines a well-behaved writer never produces: blank or duplicate
// variant ids and non-positive quantities.
func normalize(state domain.CartState) domain.CartState {
	lines := make([]domain.CartLine, 0, len(state.Lines))
	seen := make(map[string]bool, len(state.Lines))
	for _, l := range state.Lines {
		id := strings.TrimSpace(l.VariantID)
		if id == "" || l.Quantity <= 0 || seen[id] {
			continue
		}
		seen[id] = true
		lines = append(lines, l.Clone())
	}
	return domain.CartState{Lines: lines, RemoteSessionID: strings.TrimSpace(state.RemoteSessionID)}
}
