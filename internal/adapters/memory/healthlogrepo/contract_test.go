package healthlogrepo

import (
	"testing"

	"github.com/househealth/househealth-api/internal/adapters/contracttest"
	healthlogrepoport "github.com/househealth/househealth-api/internal/ports/out/healthlogrepo"
)

func TestContract_HealthLogRepo(t *testing.T) {
	contracttest.RunHealthLogRepo(t, func(t *testing.T) (healthlogrepoport.Repository, func()) {
		t.Helper()
		return NewRepo(), nil
	}, nil)
}
