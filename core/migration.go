package core

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// Migration represents a single database migration.
type Migration struct {
	Version     int64
	Description string
	Up          func(ctx context.Context, tx *Tx) error
	Down        func(ctx context.Context, tx *Tx) error
}

// MigrationRecord is one row of the migration history table.
type MigrationRecord struct {
	Version     int64 `tablex:"pk"`
	Description string
	AppliedAt   time.Time
}

func (MigrationRecord) TableName() string { return "tablex_migrations" }

// Migrator manages database migrations and history.
type Migrator struct {
	db      *DB
	history map[int64]bool
}

// NewMigrator creates a new Migrator instance.
func NewMigrator(db *DB) *Migrator {
	return &Migrator{
		db:      db,
		history: make(map[int64]bool),
	}
}

// Init creates the history table if needed and loads the applied versions.
func (m *Migrator) Init(ctx context.Context) error {
	if _, err := Execute[Result](ctx, m.db, CreateTable[MigrationRecord]().IfNotExists(), nil); err != nil {
		return fmt.Errorf("failed to initialize migration table: %w", err)
	}

	records, err := Execute[[]MigrationRecord](ctx, m.db, SelectRows[MigrationRecord](), nil)
	if err != nil {
		return fmt.Errorf("failed to fetch migration history: %w", err)
	}
	for _, r := range records {
		m.history[r.Version] = true
	}
	return nil
}

// Applied returns the applied versions in ascending order.
func (m *Migrator) Applied() []int64 {
	versions := make([]int64, 0, len(m.history))
	for v := range m.history {
		versions = append(versions, v)
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i] < versions[j] })
	return versions
}

// Migrate executes, in version order, the migrations that haven't been applied yet.
// Each migration and its history row commit in one transaction.
func (m *Migrator) Migrate(ctx context.Context, migrations ...*Migration) error {
	if err := m.Init(ctx); err != nil {
		return err
	}

	pending := make([]*Migration, 0, len(migrations))
	for _, mig := range migrations {
		if !m.history[mig.Version] {
			pending = append(pending, mig)
		}
	}
	sort.SliceStable(pending, func(i, j int) bool { return pending[i].Version < pending[j].Version })

	for _, mig := range pending {
		err := m.db.Transaction(ctx, func(tx *Tx) error {
			if mig.Up != nil {
				if err := mig.Up(ctx, tx); err != nil {
					return err
				}
			}
			rec := &MigrationRecord{
				Version:     mig.Version,
				Description: mig.Description,
				AppliedAt:   time.Now().UTC(),
			}
			_, err := Execute[Result](ctx, tx, InsertRow[MigrationRecord](), Named(rec))
			return err
		})
		if err != nil {
			return fmt.Errorf("failed to apply migration %d (%s): %w", mig.Version, mig.Description, err)
		}

		m.history[mig.Version] = true
		m.db.logger.Info("applied migration %d (%s)", mig.Version, mig.Description)
	}

	return nil
}

// Rollback reverts an applied migration and removes it from the history.
func (m *Migrator) Rollback(ctx context.Context, mig *Migration) error {
	if !m.history[mig.Version] {
		return fmt.Errorf("migration %d not applied", mig.Version)
	}

	err := m.db.Transaction(ctx, func(tx *Tx) error {
		if mig.Down != nil {
			if err := mig.Down(ctx, tx); err != nil {
				return err
			}
		}
		deleteSQL := "DELETE FROM tablex_migrations WHERE version = " + tx.Dialect().BindVar(1)
		_, err := tx.Exec(ctx, deleteSQL, mig.Version)
		return err
	})

	if err != nil {
		return fmt.Errorf("failed to rollback migration %d (%s): %w", mig.Version, mig.Description, err)
	}

	delete(m.history, mig.Version)
	return nil
}
