package families

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/househealth/househealth-api/internal/domain"
	"github.com/househealth/househealth-api/internal/ports/out/familyrepo"
)

// runTx runs fn in one repository transaction, maps storage conflicts to ErrConflict
// and records the outcome for op.
func runTx(ctx context.Context, repo familyrepo.Repository, m Metrics, op string, fn func(ctx context.Context, tx familyrepo.Tx) error) error {
	err := repo.InTx(ctx, fn)
	if errors.Is(err, familyrepo.ErrConflict) {
		var appErr *Error
		if !errors.As(err, &appErr) {
			err = conflict()
		}
	}
	metricsOrNoop(m).ObserveMembershipOperation(op, outcome(err))
	return err
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return strings.ToLower(appErr.Code)
	}
	return "error"
}

// bumpVersion records a committed change to the family or its membership set.
func bumpVersion(ctx context.Context, tx familyrepo.Tx, f domain.Family, now time.Time) (domain.Family, error) {
	f.UpdatedAt = now
	return tx.UpdateFamily(ctx, f)
}
