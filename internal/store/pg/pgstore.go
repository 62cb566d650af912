package pg

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"smaug.org/internal/directory"
)

// Store reads attribute exports straight from Postgres. All queries are
// single-statement reads; no transactions are needed.
type Store struct {
	db *sql.DB
}

var _ directory.Service = (*Store)(nil)

func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Tuned pool defaults; adjust under load tests
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// NewWithDB wraps an existing handle (tests, shared pools).
func NewWithDB(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

// Mixed-case columns are quoted because the schema predates this service and
// was created with case-sensitive names.
const (
	selectUserAttributes = `select email, country, "position", authority, "isSSM", org_unit_level_a, team from iam_user`
	selectOrgAttributes  = `select country, orgpath, name, approvers from organisation`
)

// ListUserAttributes projects every iam_user row into the PDP attribute
// shape. Each output key maps to exactly one column; a NULL column becomes a
// JSON null.
func (s *Store) ListUserAttributes(ctx context.Context) ([]directory.UserAttributes, error) {
	rows, err := s.db.QueryContext(ctx, selectUserAttributes)
	if err != nil {
		return nil, fmt.Errorf("query iam_user: %w", err)
	}
	defer rows.Close()

	users := make([]directory.UserAttributes, 0)
	for rows.Next() {
		var (
			email, country, position, authority sql.NullString
			orgUnit, team                       sql.NullString
			ssmMember                           sql.NullBool
		)
		if err := rows.Scan(&email, &country, &position, &authority, &ssmMember, &orgUnit, &team); err != nil {
			return nil, fmt.Errorf("scan iam_user: %w", err)
		}
		users = append(users, directory.UserAttributes{
			Key:           nullString(email),
			Country:       nullString(country),
			Position:      nullString(position),
			Authority:     nullString(authority),
			SSMMember:     nullBool(ssmMember),
			OrgUnitLevelA: nullString(orgUnit),
			Team:          nullString(team),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate iam_user: %w", err)
	}
	return users, nil
}

// ListOrgAttributes projects every organisation row. Authority has no source
// column and stays nil.
func (s *Store) ListOrgAttributes(ctx context.Context) ([]directory.OrgAttributes, error) {
	rows, err := s.db.QueryContext(ctx, selectOrgAttributes)
	if err != nil {
		return nil, fmt.Errorf("query organisation: %w", err)
	}
	defer rows.Close()

	orgs := make([]directory.OrgAttributes, 0)
	for rows.Next() {
		var country, orgpath, name, approvers sql.NullString
		if err := rows.Scan(&country, &orgpath, &name, &approvers); err != nil {
			return nil, fmt.Errorf("scan organisation: %w", err)
		}
		orgs = append(orgs, directory.OrgAttributes{
			Country:   nullString(country),
			Orgpath:   nullString(orgpath),
			Name:      nullString(name),
			Approvers: nullString(approvers),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate organisation: %w", err)
	}
	return orgs, nil
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func nullBool(v sql.NullBool) *bool {
	if !v.Valid {
		return nil
	}
	b := v.Bool
	return &b
}
