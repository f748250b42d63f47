package directory

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"school-messenger/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Resolver is the read-only boundary to the four user directories. The
// messaging core never walks role-specific code paths: every lookup
// dispatches on the role type through this single interface.
type Resolver interface {
	Resolve(ctx context.Context, ref models.Ref) (models.Identity, error)
	RoleID(ctx context.Context, name string) (int64, error)
	RoleName(ctx context.Context, id int64) (string, error)
}

// roleTables whitelists the table behind each role name. Role rows come
// from the role_types reference table, so an unknown name here means a
// role was added to the database without a directory to back it.
var roleTables = map[string]string{
	models.RoleAdministrator: "administrators",
	models.RoleTeacher:       "teachers",
	models.RoleParent:        "parents",
	models.RoleStudent:       "students",
}

type PostgresDirectory struct {
	pool *pgxpool.Pool

	// role_types is tiny and append-only in practice, cache reads through.
	mu     sync.RWMutex
	byName map[string]int64
	byID   map[int64]string
}

func NewPostgresDirectory(pool *pgxpool.Pool) *PostgresDirectory {
	return &PostgresDirectory{
		pool:   pool,
		byName: make(map[string]int64),
		byID:   make(map[int64]string),
	}
}

func (d *PostgresDirectory) Resolve(ctx context.Context, ref models.Ref) (models.Identity, error) {
	roleName, err := d.RoleName(ctx, ref.RoleID)
	if err != nil {
		return models.Identity{}, err
	}

	table, ok := roleTables[roleName]
	if !ok {
		log.Printf("[DIRECTORY] Role %q has no backing directory table", roleName)
		return models.Identity{}, models.ErrIdentityNotFound
	}

	var identity models.Identity
	query := fmt.Sprintf(`SELECT first_name, last_name FROM %s WHERE id = $1`, table)

	err = d.pool.QueryRow(ctx, query, ref.UserID).Scan(&identity.FirstName, &identity.LastName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Identity{}, models.ErrIdentityNotFound
		}
		return models.Identity{}, &models.IdentityResolutionError{Ref: ref, Err: err}
	}

	return identity, nil
}

func (d *PostgresDirectory) RoleID(ctx context.Context, name string) (int64, error) {
	d.mu.RLock()
	id, ok := d.byName[name]
	d.mu.RUnlock()
	if ok {
		return id, nil
	}

	err := d.pool.QueryRow(ctx, `SELECT id FROM role_types WHERE name = $1`, name).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, models.ErrIdentityNotFound
		}
		return 0, fmt.Errorf("role lookup for %q failed: %w", name, err)
	}

	d.mu.Lock()
	d.byName[name] = id
	d.byID[id] = name
	d.mu.Unlock()

	return id, nil
}

func (d *PostgresDirectory) RoleName(ctx context.Context, id int64) (string, error) {
	d.mu.RLock()
	name, ok := d.byID[id]
	d.mu.RUnlock()
	if ok {
		return name, nil
	}

	err := d.pool.QueryRow(ctx, `SELECT name FROM role_types WHERE id = $1`, id).Scan(&name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", models.ErrIdentityNotFound
		}
		return "", fmt.Errorf("role lookup for id %d failed: %w", id, err)
	}

	d.mu.Lock()
	d.byName[name] = id
	d.byID[id] = name
	d.mu.Unlock()

	return name, nil
}
