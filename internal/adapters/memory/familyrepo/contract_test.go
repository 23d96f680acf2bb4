package familyrepo

import (
	"testing"

	"github.com/househealth/househealth-api/internal/adapters/contracttest"
	familyrepoport "github.com/househealth/househealth-api/internal/ports/out/familyrepo"
)

func TestContract_FamilyRepo(t *testing.T) {
	contracttest.RunFamilyRepo(t, func(t *testing.T) (familyrepoport.Repository, func()) {
		t.Helper()
		return NewRepo(), nil
	}, nil)
}
