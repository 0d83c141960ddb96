// Package postgresdb provides the PostgreSQL-based implementation of the storage
// contract: users, alias records and their visitor logs.
// Uniqueness of emails and aliases is enforced by unique indexes, so a create
// that races against a duplicate has exactly one winner.
package postgresdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/thoas/go-funk"

	"github.com/shrturl/shrturl/internal/alias"
	"github.com/shrturl/shrturl/internal/models"
	"github.com/shrturl/shrturl/internal/user"
)

// PostgresDB is a PostgreSQL-backed storage.
type PostgresDB struct {
	database          *sql.DB
	connectionTimeout time.Duration
}

type initOptions struct {
	DBPreReset bool
}

// InitOption defines a functional option for configuring database initialization.
type InitOption func(*initOptions)

// WithDBPreReset enables dropping the public schema tables before migration.
// It is meant for test setups.
func WithDBPreReset(value bool) InitOption {
	return func(options *initOptions) {
		options.DBPreReset = value
	}
}

// New establishes a connection to the PostgreSQL database,
// runs schema migrations, and returns a configured PostgresDB instance.
func New(
	ctx context.Context,
	databaseDSN string,
	connectionTimeout time.Duration,
	migrationsDir string,
	optionsProto ...InitOption,
) (*PostgresDB, error) {
	options := &initOptions{}
	for _, protoOption := range optionsProto {
		protoOption(options)
	}

	database, err := sql.Open("pgx", databaseDSN)
	if err != nil {
		return nil, err
	}

	result := &PostgresDB{
		database:          database,
		connectionTimeout: connectionTimeout,
	}

	if options.DBPreReset {
		if err := result.resetDB(ctx); err != nil {
			return nil,
				fmt.Errorf(
					"in internal/db/postgresdb/postgresdb.go/New(): error while `result.resetDB()` calling: %w",
					err,
				)
		}
	}

	if err := goose.SetDialect("postgres"); err != nil {
		return nil,
			fmt.Errorf(
				"in internal/db/postgresdb/postgresdb.go/New(): error while `goose.SetDialect()` calling: %w",
				err,
			)
	}

	if err := goose.Up(result.database, migrationsDir); err != nil {
		return nil,
			fmt.Errorf(
				"in internal/db/postgresdb/postgresdb.go/New(): error while `goose.Up()` calling: %w",
				err,
			)
	}

	return result, nil
}

func newUUID() string {
	return uuid.New().String()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError

	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

// CreateUser inserts a new user record.
// Returns models.ErrEmailAlreadyExists when the email unique index rejects the insert.
func (db *PostgresDB) CreateUser(ctx context.Context, usr *user.User) (*user.User, error) {
	created := *usr
	if created.ID == "" {
		created.ID = newUUID()
	}

	_, err := db.database.ExecContext(
		ctx,
		`INSERT INTO users (id, email, password_hash, role) VALUES ($1, $2, $3, $4)`,
		created.ID,
		created.Email,
		created.PasswordHash,
		created.Role,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, models.ErrEmailAlreadyExists
		}
		return nil, err
	}

	return &created, nil
}

// FindUserByEmail fetches a user by email. The bool reports presence.
func (db *PostgresDB) FindUserByEmail(ctx context.Context, email string) (*user.User, bool, error) {
	row := db.database.QueryRowContext(
		ctx,
		`SELECT id, email, password_hash, role FROM users WHERE email = $1`,
		email,
	)

	return scanUser(row)
}

// GetUserByID fetches a user by its UUID. The bool reports presence.
func (db *PostgresDB) GetUserByID(ctx context.Context, userID string) (*user.User, bool, error) {
	if userID == "" {
		return nil, false, nil
	}

	row := db.database.QueryRowContext(
		ctx,
		`SELECT id, email, password_hash, role FROM users WHERE id = $1`,
		userID,
	)

	return scanUser(row)
}

// InsertAlias stores a new alias record with an empty visitor log.
// Returns models.ErrAliasAlreadyExists when the alias unique index rejects the insert.
func (db *PostgresDB) InsertAlias(ctx context.Context, a *alias.Alias) error {
	if a.ID == "" {
		a.ID = newUUID()
	}

	_, err := db.database.ExecContext(
		ctx,
		`
			INSERT INTO aliases (id, original_url, alias, public_link, visit_count, owner_id)
				VALUES ($1, $2, $3, $4, $5, $6)
		`,
		a.ID,
		a.OriginalURL,
		a.Alias,
		a.PublicLink,
		a.VisitCount,
		a.OwnerID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return models.ErrAliasAlreadyExists
		}
		return err
	}

	return nil
}

// FindAliasByName fetches the alias record with the given short token,
// including its full visitor log.
func (db *PostgresDB) FindAliasByName(ctx context.Context, name string) (*alias.Alias, bool, error) {
	row := db.database.QueryRowContext(
		ctx,
		`
			SELECT id, original_url, alias, public_link, visit_count, owner_id
				FROM aliases
				WHERE alias = $1
		`,
		name,
	)

	return db.scanAliasWithLog(ctx, row)
}

// FindAliasByPublicLink fetches the alias record with the given public link.
func (db *PostgresDB) FindAliasByPublicLink(ctx context.Context, publicLink string) (*alias.Alias, bool, error) {
	row := db.database.QueryRowContext(
		ctx,
		`
			SELECT id, original_url, alias, public_link, visit_count, owner_id
				FROM aliases
				WHERE public_link = $1
		`,
		publicLink,
	)

	return db.scanAliasWithLog(ctx, row)
}

// RegisterVisit increments the visit counter and appends the visitor address
// within a single transaction, so the counter and the log never diverge.
// The commit completes before the method returns.
func (db *PostgresDB) RegisterVisit(ctx context.Context, name, visitorAddr string) (bool, error) {
	transaction, err := db.database.Begin()
	if err != nil {
		return false, err
	}
	defer func() {
		_ = transaction.Rollback()
	}()

	row := transaction.QueryRowContext(
		ctx,
		`UPDATE aliases SET visit_count = visit_count + 1 WHERE alias = $1 RETURNING id`,
		name,
	)
	var aliasID string
	if err := row.Scan(&aliasID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}

	_, err = transaction.ExecContext(
		ctx,
		`INSERT INTO alias_visits (alias_id, visitor) VALUES ($1, $2)`,
		aliasID,
		visitorAddr,
	)
	if err != nil {
		return false, err
	}

	if err := transaction.Commit(); err != nil {
		return false, err
	}

	return true, nil
}

// GetUserAliases returns every alias owned by the given user, in insertion order.
func (db *PostgresDB) GetUserAliases(ctx context.Context, ownerID string) ([]alias.Alias, error) {
	rows, err := db.database.QueryContext(
		ctx,
		`
			SELECT id, original_url, alias, public_link, visit_count, owner_id
				FROM aliases
				WHERE owner_id = $1
				ORDER BY seq
		`,
		ownerID,
	)
	if err != nil {
		return nil, err
	}

	return db.collectAliases(ctx, rows)
}

// GetAliasesPage returns up to limit aliases across all owners,
// skipping the first skip records, in insertion order.
func (db *PostgresDB) GetAliasesPage(ctx context.Context, skip, limit int) ([]alias.Alias, error) {
	rows, err := db.database.QueryContext(
		ctx,
		`
			SELECT id, original_url, alias, public_link, visit_count, owner_id
				FROM aliases
				ORDER BY seq
				OFFSET $1 LIMIT $2
		`,
		skip,
		limit,
	)
	if err != nil {
		return nil, err
	}

	return db.collectAliases(ctx, rows)
}

// Ping verifies connectivity with the PostgreSQL database within the configured timeout.
func (db *PostgresDB) Ping(ctx context.Context) error {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, db.connectionTimeout)
	defer cancel()

	return db.database.PingContext(ctxWithTimeout)
}

// Close closes the database connection and releases any associated resources.
func (db *PostgresDB) Close() error {
	return db.database.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*user.User, bool, error) {
	usr := user.User{}
	err := row.Scan(&usr.ID, &usr.Email, &usr.PasswordHash, &usr.Role)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}

	return &usr, true, nil
}

func scanAlias(row rowScanner) (*alias.Alias, error) {
	a := alias.Alias{VisitorLog: []string{}}
	err := row.Scan(&a.ID, &a.OriginalURL, &a.Alias, &a.PublicLink, &a.VisitCount, &a.OwnerID)
	if err != nil {
		return nil, err
	}

	return &a, nil
}

func (db *PostgresDB) scanAliasWithLog(ctx context.Context, row rowScanner) (*alias.Alias, bool, error) {
	a, err := scanAlias(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}

	logs, err := db.loadVisitorLogs(ctx, []string{a.ID})
	if err != nil {
		return nil, false, err
	}
	if log, ok := logs[a.ID]; ok {
		a.VisitorLog = log
	}

	return a, true, nil
}

func (db *PostgresDB) collectAliases(ctx context.Context, rows *sql.Rows) ([]alias.Alias, error) {
	defer rows.Close()

	result := []alias.Alias{}
	for rows.Next() {
		a, err := scanAlias(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	aliasIDs := funk.Map(result, func(a alias.Alias) string { return a.ID }).([]string)
	logs, err := db.loadVisitorLogs(ctx, aliasIDs)
	if err != nil {
		return nil, err
	}
	for i := range result {
		if log, ok := logs[result[i].ID]; ok {
			result[i].VisitorLog = log
		} else {
			result[i].VisitorLog = []string{}
		}
	}

	return result, nil
}

func (db *PostgresDB) loadVisitorLogs(ctx context.Context, aliasIDs []string) (map[string][]string, error) {
	if len(aliasIDs) == 0 {
		return map[string][]string{}, nil
	}

	placeholdersSlice := make([]string, len(aliasIDs))
	for i := range aliasIDs {
		placeholdersSlice[i] = fmt.Sprintf("$%d", i+1)
	}
	placeholders := strings.Join(placeholdersSlice, ",")

	rows, err := db.database.QueryContext(
		ctx,
		fmt.Sprintf(
			`SELECT alias_id, visitor FROM alias_visits WHERE alias_id IN (%s) ORDER BY id`,
			placeholders,
		),
		func(strSlice []string) []interface{} {
			result := make([]interface{}, len(strSlice))
			for i, v := range strSlice {
				result[i] = v
			}

			return result
		}(aliasIDs)...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := map[string][]string{}
	for rows.Next() {
		var aliasID, visitor string
		if err := rows.Scan(&aliasID, &visitor); err != nil {
			return nil, err
		}
		result[aliasID] = append(result[aliasID], visitor)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (db *PostgresDB) resetDB(ctx context.Context) error {
	_, err := db.database.ExecContext(
		ctx,
		`
			DO $$
			DECLARE
				r RECORD;
			BEGIN
				FOR r IN (SELECT tablename FROM pg_tables WHERE schemaname = 'public') LOOP
					EXECUTE 'DROP TABLE IF EXISTS ' || quote_ident(r.tablename) || ' CASCADE';
				END LOOP;
			END $$;
		`,
	)
	if err != nil {
		return fmt.Errorf(
			"in internal/db/postgresdb/postgresdb.go/resetDB(): error while `db.database.ExecContext()` calling: %w",
			err,
		)
	}
	return nil
}
