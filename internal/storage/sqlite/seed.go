package sqlite

import (
	"context"
	"fmt"

	"github.com/aanand-mishra/users-api/internal/types"
	"github.com/jmoiron/sqlx"
)

// seedUser is one demo user with the single address linked to it.
type seedUser struct {
	name     string
	fullname string
	email    string
}

var seedUsers = []seedUser{
	{name: "spongebob", fullname: "Spongebob Squarepants", email: "spongebob@sqlalchemy.org"},
	{name: "sandy", fullname: "Sandy Cheeks", email: "sandy@sqlalchemy.org"},
	{name: "patrick", fullname: "Patrick Star", email: "patrick@sqlalchemy.org"},
}

// Seed inserts the demo users and addresses, one association per pair,
// but only when user_account is empty. The emptiness check and the
// inserts share one transaction, so running Seed again never
// duplicates rows. It reports whether anything was written.
func (s *SQLite) Seed(ctx context.Context) (seeded bool, err error) {
	ctx, done := s.obs.start(ctx, "Seed")
	defer func() { done(err) }()

	sess, err := s.acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("Seed: %w", err)
	}
	defer sess.Close()

	err = sess.inTx(ctx, func(tx *sqlx.Tx) error {
		n, err := countUsers(ctx, tx)
		if err != nil {
			return err
		}
		if n > 0 {
			return nil
		}

		for _, su := range seedUsers {
			fullname := su.fullname
			userID, err := insertUser(ctx, tx, su.name, &fullname)
			if err != nil {
				return err
			}
			addressID, err := insertAddress(ctx, tx, su.email)
			if err != nil {
				return err
			}
			if err := linkUserAddress(ctx, tx, types.UserAddress{UserID: userID, AddressID: addressID}); err != nil {
				return err
			}
		}
		seeded = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("Seed: %w", err)
	}

	return seeded, nil
}
