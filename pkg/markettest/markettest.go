// Package markettest seeds an in-memory marketplace for tests.
package markettest

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/chris/student-escrow-market/pkg/models"
	"github.com/chris/student-escrow-market/pkg/money"
	"github.com/chris/student-escrow-market/pkg/storage/memory"
	"github.com/chris/student-escrow-market/pkg/websockets"
)

// Seeded principals and listing.
var (
	Buyer     = models.Principal{ID: "0190a000-0000-7000-8000-000000000001", Role: models.RoleUser, Status: models.UserActive}
	Seller    = models.Principal{ID: "0190a000-0000-7000-8000-000000000002", Role: models.RoleUser, Status: models.UserActive}
	Moderator = models.Principal{ID: "0190a000-0000-7000-8000-000000000003", Role: models.RoleModerator, Status: models.UserActive}
	Stranger  = models.Principal{ID: "0190a000-0000-7000-8000-000000000004", Role: models.RoleUser, Status: models.UserActive}
	Blocked   = models.Principal{ID: "0190a000-0000-7000-8000-000000000005", Role: models.RoleUser, Status: models.UserBlocked}

	Listing = models.Listing{
		ID:      "0190a000-0000-7000-8000-0000000000a1",
		Title:   "Linear algebra lecture notes",
		Price:   money.MustParse("500.00"),
		Status:  models.ListingApproved,
		OwnerID: Seller.ID,
	}
)

// NewStore returns a memory store holding the seeded principals and listing.
func NewStore() *memory.Store {
	store := memory.New()
	for _, p := range []models.Principal{Buyer, Seller, Moderator, Stranger, Blocked} {
		store.PutUser(p)
	}
	store.PutListing(Listing)
	return store
}

// Logger discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Publisher records published messages.
type Publisher struct {
	mu       sync.Mutex
	messages []websockets.Message
}

// Publish records the message.
func (p *Publisher) Publish(ctx context.Context, message websockets.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, message)
	return nil
}

// Messages returns the messages of the given type.
func (p *Publisher) Messages(kind websockets.MessageType) []websockets.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []websockets.Message
	for _, m := range p.messages {
		if m.Type == kind {
			out = append(out, m)
		}
	}
	return out
}
