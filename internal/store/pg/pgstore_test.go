package pg

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func newStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewWithDB(db), mock
}

func userColumns() []string {
	return []string{"email", "country", "position", "authority", "isSSM", "org_unit_level_a", "team"}
}

func TestListUserAttributesProjectsNulls(t *testing.T) {
	store, mock := newStore(t)

	rows := sqlmock.NewRows(userColumns()).
		AddRow("ana@example.eu", "romania", "analyst", "SSM", true, "DGMS4", "team_a").
		AddRow("bob@example.eu", nil, nil, nil, nil, nil, nil)
	mock.ExpectQuery(`select email, country, "position", authority, "isSSM", org_unit_level_a, team from iam_user`).
		WillReturnRows(rows)

	users, err := store.ListUserAttributes(context.Background())
	if err != nil {
		t.Fatalf("ListUserAttributes: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(users))
	}
	if users[0].Key == nil || *users[0].Key != "ana@example.eu" {
		t.Fatalf("unexpected key: %v", users[0].Key)
	}
	if users[0].SSMMember == nil || !*users[0].SSMMember {
		t.Fatalf("expected ssm_member true")
	}

	// The sparse row keeps every key and serialises nulls explicitly.
	data, err := json.Marshal(users[1])
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, key := range []string{"key", "country", "position", "authority", "ssm_member", "org_unit_level_a", "team"} {
		if !strings.Contains(string(data), `"`+key+`"`) {
			t.Fatalf("missing key %q in %s", key, data)
		}
	}
	if !strings.Contains(string(data), `"country":null`) {
		t.Fatalf("expected explicit null country, got %s", data)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListUserAttributesEmptyTable(t *testing.T) {
	store, mock := newStore(t)

	mock.ExpectQuery(`from iam_user`).WillReturnRows(sqlmock.NewRows(userColumns()))

	users, err := store.ListUserAttributes(context.Background())
	if err != nil {
		t.Fatalf("ListUserAttributes: %v", err)
	}
	if users == nil {
		t.Fatal("expected empty slice, got nil")
	}
	if len(users) != 0 {
		t.Fatalf("expected no rows, got %d", len(users))
	}
}

func TestListUserAttributesQueryError(t *testing.T) {
	store, mock := newStore(t)

	mock.ExpectQuery(`from iam_user`).WillReturnError(errors.New("connection reset"))

	if _, err := store.ListUserAttributes(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestListOrgAttributes(t *testing.T) {
	store, mock := newStore(t)

	rows := sqlmock.NewRows([]string{"country", "orgpath", "name", "approvers"}).
		AddRow("germany", "/ssm/dg1", "DG One", "chief@example.eu").
		AddRow(nil, nil, "Orphan Org", nil)
	mock.ExpectQuery(`select country, orgpath, name, approvers from organisation`).
		WillReturnRows(rows)

	orgs, err := store.ListOrgAttributes(context.Background())
	if err != nil {
		t.Fatalf("ListOrgAttributes: %v", err)
	}
	if len(orgs) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(orgs))
	}

	// authority is not a real column and must always serialise as null.
	data, err := json.Marshal(orgs[0])
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(data), `"authority":null`) {
		t.Fatalf("expected authority null, got %s", data)
	}
	for _, key := range []string{"country", "orgpath", "name", "authority", "approvers"} {
		if !strings.Contains(string(data), `"`+key+`"`) {
			t.Fatalf("missing key %q in %s", key, data)
		}
	}
}
