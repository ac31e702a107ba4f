package user

import (
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/microbrsoil-backend/internal/data/repos/testutil"
	types "github.com/yungbote/microbrsoil-backend/internal/domain/user"
)

func TestUserRepo(t *testing.T) {
	db := testutil.DB(t)
	repo := NewUserRepo(db, testutil.Logger(t))
	dbc := testutil.Ctx()

	created, err := repo.Create(dbc, []*types.User{
		{Email: "  Lab@Example.com ", Password: "hash", Role: types.RoleUser, IsActive: true},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(created) != 1 || created[0].ID == uuid.Nil {
		t.Fatalf("Create: unexpected result: %+v", created)
	}

	got, err := repo.GetByEmail(dbc, "lab@example.com")
	if err != nil {
		t.Fatalf("GetByEmail: %v", err)
	}
	if got == nil || got.ID != created[0].ID {
		t.Fatalf("GetByEmail: got=%+v", got)
	}

	exists, err := repo.EmailExists(dbc, "LAB@example.com")
	if err != nil || !exists {
		t.Fatalf("EmailExists: exists=%v err=%v", exists, err)
	}

	missing, err := repo.GetByEmail(dbc, "nobody@example.com")
	if err != nil || missing != nil {
		t.Fatalf("GetByEmail(missing): got=%+v err=%v", missing, err)
	}

	if err := repo.TouchLastLogin(dbc, created[0].ID); err != nil {
		t.Fatalf("TouchLastLogin: %v", err)
	}
	byIDs, err := repo.GetByIDs(dbc, []uuid.UUID{created[0].ID})
	if err != nil || len(byIDs) != 1 || byIDs[0].LastLoginAt == nil {
		t.Fatalf("GetByIDs: rows=%+v err=%v", byIDs, err)
	}

	if _, err := repo.Create(dbc, []*types.User{{Email: "lab@example.com", Password: "x", Role: types.RoleUser, IsActive: true}}); err == nil {
		t.Fatalf("Create: expected unique violation on duplicate email")
	}
}
