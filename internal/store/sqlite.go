package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/firefly-engineering/firefly-forage/packages/guest-ctl/internal/config"
	gerrors "github.com/firefly-engineering/firefly-forage/packages/guest-ctl/internal/errors"
)

//go:embed schema.sql
var sqliteSchema string

// allocationModel is the bun model for the allocations table.
type allocationModel struct {
	bun.BaseModel `bun:"table:allocations"`

	Username       string `bun:"username,pk"`
	Port           int    `bun:"port,notnull,unique"`
	ContainerImage string `bun:"container_image,notnull"`
	PublicKey      string `bun:"public_key,notnull"`
	CreatedAt      string `bun:"created_at,notnull"`
	ExtraRunArgs   string `bun:"extra_run_args,notnull"`
	GPUSpec        string `bun:"gpu_spec,notnull"`
}

func toModel(rec *config.AllocationRecord) (*allocationModel, error) {
	args := rec.ExtraRunArgs
	if args == nil {
		args = []string{}
	}
	encoded, err := json.Marshal(args)
	if err != nil {
		return nil, err
	}
	return &allocationModel{
		Username:       rec.Username,
		Port:           rec.Port,
		ContainerImage: rec.ContainerImageRef,
		PublicKey:      rec.PublicKey,
		CreatedAt:      rec.CreatedAt.Format(time.RFC3339Nano),
		ExtraRunArgs:   string(encoded),
		GPUSpec:        rec.GPUSpec,
	}, nil
}

func (m *allocationModel) record() (*config.AllocationRecord, error) {
	created, err := time.Parse(time.RFC3339Nano, m.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("invalid created_at for %s: %w", m.Username, err)
	}
	var args []string
	if err := json.Unmarshal([]byte(m.ExtraRunArgs), &args); err != nil {
		return nil, fmt.Errorf("invalid extra_run_args for %s: %w", m.Username, err)
	}
	rec := &config.AllocationRecord{
		Username:          m.Username,
		Port:              m.Port,
		ContainerImageRef: m.ContainerImage,
		PublicKey:         m.PublicKey,
		CreatedAt:         created,
		ExtraRunArgs:      args,
		GPUSpec:           m.GPUSpec,
	}
	rec.Normalize()
	return rec, nil
}

// SQLiteStore keeps records in an SQLite database.
type SQLiteStore struct {
	db       *bun.DB
	readOnly bool
	lock     *fileLock
}

func sqliteDSN(path string, readOnly bool) string {
	q := url.Values{}
	q.Add("_pragma", "busy_timeout(5000)")
	if readOnly {
		q.Set("mode", "ro")
	} else {
		q.Add("_pragma", "journal_mode(WAL)")
	}
	return "file:" + path + "?" + q.Encode()
}

func openSQLite(ctx context.Context, path string, readOnly bool, lock *fileLock) (*SQLiteStore, error) {
	sqlDB, err := sql.Open("sqlite", sqliteDSN(path, readOnly))
	if err != nil {
		return nil, gerrors.StoreUnavailable("open", err)
	}
	sqlDB.SetMaxOpenConns(1)

	db := bun.NewDB(sqlDB, sqlitedialect.New())
	s := &SQLiteStore{db: db, readOnly: readOnly, lock: lock}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, gerrors.StoreUnavailable("open", err)
	}

	if !readOnly {
		if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
			db.Close()
			return nil, gerrors.StoreUnavailable("migrate", err)
		}
	}

	return s, nil
}

func (s *SQLiteStore) Get(ctx context.Context, username string) (*config.AllocationRecord, error) {
	var m allocationModel
	err := s.db.NewSelect().Model(&m).Where("username = ?", username).Limit(1).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || isMissingTable(err) {
			return nil, nil
		}
		return nil, gerrors.StoreUnavailable("get", err)
	}

	rec, err := m.record()
	if err != nil {
		return nil, gerrors.StoreUnavailable("get", err)
	}
	return rec, nil
}

func (s *SQLiteStore) ListActive(ctx context.Context) ([]*config.AllocationRecord, error) {
	var models []allocationModel
	err := s.db.NewSelect().Model(&models).OrderExpr("port ASC, username ASC").Scan(ctx)
	if err != nil {
		if isMissingTable(err) {
			return []*config.AllocationRecord{}, nil
		}
		return nil, gerrors.StoreUnavailable("list", err)
	}

	out := make([]*config.AllocationRecord, 0, len(models))
	for i := range models {
		rec, err := models[i].record()
		if err != nil {
			return nil, gerrors.StoreUnavailable("list", err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *SQLiteStore) Put(ctx context.Context, rec *config.AllocationRecord) error {
	if err := validateForPut(rec); err != nil {
		return err
	}
	if s.readOnly {
		return gerrors.StoreUnavailable("put", fmt.Errorf("store opened read-only"))
	}

	m, err := toModel(rec)
	if err != nil {
		return gerrors.StoreUnavailable("put", err)
	}

	_, err = s.db.NewInsert().
		Model(m).
		On("CONFLICT (username) DO UPDATE").
		Set("port = EXCLUDED.port").
		Set("container_image = EXCLUDED.container_image").
		Set("public_key = EXCLUDED.public_key").
		Set("created_at = EXCLUDED.created_at").
		Set("extra_run_args = EXCLUDED.extra_run_args").
		Set("gpu_spec = EXCLUDED.gpu_spec").
		Exec(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return gerrors.PortInUse(rec.Port)
		}
		return gerrors.StoreUnavailable("put", err)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, username string) error {
	if s.readOnly {
		return gerrors.StoreUnavailable("delete", fmt.Errorf("store opened read-only"))
	}
	_, err := s.db.NewDelete().Model((*allocationModel)(nil)).Where("username = ?", username).Exec(ctx)
	if err != nil {
		return gerrors.StoreUnavailable("delete", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return errors.Join(s.db.Close(), s.lock.release())
}

// isUniqueViolation matches driver messages for UNIQUE constraint failures.
func isUniqueViolation(err error) bool {
	le := strings.ToLower(err.Error())
	return strings.Contains(le, "unique") || strings.Contains(le, "constraint failed")
}

// isMissingTable matches a read-only open of a database that was never
// initialized.
func isMissingTable(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "no such table")
}

var _ Store = (*SQLiteStore)(nil)
