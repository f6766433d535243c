package engine

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// MigrationResult counts what Migrate copied.
type MigrationResult struct {
	States  int
	Users   int
	Skipped int
}

// Migrate copies every state record and account from src into dst, keeping
// the original timestamps. Entries already present in dst are skipped, so a
// migration can be re-run. This works for:
// - Embedded -> Postgres (the upgrade)
// - Postgres -> Embedded (backup/offline)
func Migrate(ctx context.Context, src, dst Store) (MigrationResult, error) {
	var res MigrationResult
	log := logrus.WithField("component", "migrate")

	states, err := src.FindAll(ctx)
	if err != nil {
		return res, errors.Wrap(err, "failed to list states")
	}
	for _, rec := range states {
		if _, err := dst.Insert(ctx, rec); err != nil {
			if errors.Is(err, ErrDuplicateName) {
				log.Debugf("state %q already present, skipping", rec.Name)
				res.Skipped++
				continue
			}
			return res, errors.Wrapf(err, "failed to copy state %q", rec.Name)
		}
		res.States++
	}

	users, err := src.ListUsers(ctx)
	if err != nil {
		return res, errors.Wrap(err, "failed to list users")
	}
	for _, u := range users {
		if err := dst.CreateUser(ctx, u); err != nil {
			if errors.Is(err, ErrDuplicateUser) {
				log.Debugf("user %q already present, skipping", u.Email)
				res.Skipped++
				continue
			}
			return res, errors.Wrapf(err, "failed to copy user %q", u.Email)
		}
		res.Users++
	}
	return res, nil
}
