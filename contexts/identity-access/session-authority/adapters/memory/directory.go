package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"voteverse/contexts/identity-access/session-authority/domain/entities"
	domainerrors "voteverse/contexts/identity-access/session-authority/domain/errors"
	"voteverse/contexts/identity-access/session-authority/ports"

	"github.com/google/uuid"
)

// Directory is the static voter registry plus the admin credentials.
// It also serves as Clock and IDGenerator for in-memory wiring.
type Directory struct {
	mu      sync.RWMutex
	byPhone map[string]entities.Voter
	byID    map[string]entities.Voter
	order   []string
	admin   entities.AdminCredentials
}

func NewDirectory(voters []entities.Voter, admin entities.AdminCredentials) *Directory {
	d := &Directory{
		byPhone: make(map[string]entities.Voter, len(voters)),
		byID:    make(map[string]entities.Voter, len(voters)),
		admin: entities.AdminCredentials{
			Username: strings.TrimSpace(admin.Username),
			Password: admin.Password,
		},
	}
	for _, voter := range voters {
		voter.ID = strings.TrimSpace(voter.ID)
		voter.Phone = strings.TrimSpace(voter.Phone)
		voter.Name = strings.TrimSpace(voter.Name)
		voter.District = strings.TrimSpace(voter.District)
		if voter.ID == "" || voter.Phone == "" {
			continue
		}
		if _, exists := d.byID[voter.ID]; !exists {
			d.order = append(d.order, voter.ID)
		}
		d.byID[voter.ID] = voter
		d.byPhone[voter.Phone] = voter
	}
	return d
}

func (d *Directory) LookupByPhone(_ context.Context, phone string) (entities.Voter, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	voter, ok := d.byPhone[strings.TrimSpace(phone)]
	if !ok {
		return entities.Voter{}, domainerrors.ErrVoterNotRegistered
	}
	return voter, nil
}

func (d *Directory) AdminCredentials(context.Context) (entities.AdminCredentials, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.admin, nil
}

// Voters lists the registered voters in registration order.
func (d *Directory) Voters() []entities.Voter {
	d.mu.RLock()
	defer d.mu.RUnlock()
	items := make([]entities.Voter, 0, len(d.order))
	for _, id := range d.order {
		items = append(items, d.byID[id])
	}
	return items
}

func (d *Directory) Now() time.Time {
	return time.Now().UTC()
}

func (d *Directory) NewID(context.Context) (string, error) {
	return uuid.NewString(), nil
}

var (
	_ ports.VoterDirectory = (*Directory)(nil)
	_ ports.Clock          = (*Directory)(nil)
	_ ports.IDGenerator    = (*Directory)(nil)
)
