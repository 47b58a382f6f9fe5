package migrate

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed sql/*.sql
var embedded embed.FS

// Embedded 随二进制发布的迁移脚本
func Embedded() fs.FS {
	sub, err := fs.Sub(embedded, "sql")
	if err != nil {
		panic(err)
	}
	return sub
}

// lockID 会话级 advisory lock，多实例同时启动时串行迁移
const lockID int64 = 0x64726976656c6e6b

// Querier *pgxpool.Pool 与 *pgxpool.Conn 均满足
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Runner 迁移执行器；FS 优先，否则读取 Dir
type Runner struct {
	FS  fs.FS
	Dir string
}

// Migration 一个版本的上下行脚本，DownPath 可为空
type Migration struct {
	Version  int64
	Name     string
	UpPath   string
	DownPath string
}

// StatusEntry 版本应用状态
type StatusEntry struct {
	Version   int64
	Name      string
	AppliedAt *time.Time
}

// EnsureTable 保证 schema_migrations 表存在
func EnsureTable(ctx context.Context, db Querier) error {
	_, err := db.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
        version BIGINT PRIMARY KEY,
        applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
    )`)
	return err
}

// AppliedVersions 已应用版本及时间
func AppliedVersions(ctx context.Context, db Querier) (map[int64]time.Time, error) {
	rows, err := db.Query(ctx, `SELECT version, applied_at FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := make(map[int64]time.Time)
	for rows.Next() {
		var (
			v  int64
			at time.Time
		)
		if err := rows.Scan(&v, &at); err != nil {
			return nil, err
		}
		res[v] = at
	}
	return res, rows.Err()
}

func (r Runner) fsys() (fs.FS, error) {
	if r.FS != nil {
		return r.FS, nil
	}
	if r.Dir == "" {
		return nil, errors.New("migrations source is empty")
	}
	return os.DirFS(r.Dir), nil
}

// Discover 扫描 NNNN_name_up.sql / NNNN_name_down.sql，按版本升序
func Discover(fsys fs.FS) ([]Migration, error) {
	byVer := make(map[int64]*Migration)
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		base := path.Base(p)
		var up bool
		switch {
		case strings.HasSuffix(base, "_up.sql"):
			up = true
		case strings.HasSuffix(base, "_down.sql"):
		default:
			return nil
		}
		prefix, rest, _ := strings.Cut(base, "_")
		ver, err := strconv.ParseInt(prefix, 10, 64)
		if err != nil {
			return nil
		}
		m, ok := byVer[ver]
		if !ok {
			m = &Migration{Version: ver}
			byVer[ver] = m
		}
		if up {
			m.UpPath = p
			m.Name = strings.TrimSuffix(rest, "_up.sql")
		} else {
			m.DownPath = p
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	out := make([]Migration, 0, len(byVer))
	for _, m := range byVer {
		if m.UpPath == "" {
			return nil, fmt.Errorf("migration %d: missing up script", m.Version)
		}
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

// pending 未应用的版本，升序
func pending(all []Migration, applied map[int64]time.Time) []Migration {
	var out []Migration
	for _, m := range all {
		if _, ok := applied[m.Version]; !ok {
			out = append(out, m)
		}
	}
	return out
}

// rollbackPlan 最近应用的 steps 个版本，降序
func rollbackPlan(all []Migration, applied map[int64]time.Time, steps int) []Migration {
	var out []Migration
	for i := len(all) - 1; i >= 0 && len(out) < steps; i-- {
		if _, ok := applied[all[i].Version]; ok {
			out = append(out, all[i])
		}
	}
	return out
}

// withLock 在持有 advisory lock 的独占连接上执行 fn
func withLock(ctx context.Context, db *pgxpool.Pool, fn func(Querier) error) error {
	conn, err := db.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()
	if _, err := conn.Exec(ctx, `SELECT pg_advisory_lock($1)`, lockID); err != nil {
		return fmt.Errorf("acquire migration lock: %w", err)
	}
	defer func() { _, _ = conn.Exec(context.Background(), `SELECT pg_advisory_unlock($1)`, lockID) }()
	if err := EnsureTable(ctx, conn); err != nil {
		return err
	}
	return fn(conn)
}

func (r Runner) load(fsys fs.FS) ([]Migration, error) {
	all, err := Discover(fsys)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, errors.New("no migrations found")
	}
	return all, nil
}

// Up 执行全部未应用的迁移，每个版本一个事务；返回本次应用的版本
func (r Runner) Up(ctx context.Context, db *pgxpool.Pool) ([]int64, error) {
	fsys, err := r.fsys()
	if err != nil {
		return nil, err
	}
	all, err := r.load(fsys)
	if err != nil {
		return nil, err
	}
	var done []int64
	err = withLock(ctx, db, func(q Querier) error {
		applied, err := AppliedVersions(ctx, q)
		if err != nil {
			return err
		}
		for _, m := range pending(all, applied) {
			if err := apply(ctx, q, fsys, m.UpPath,
				`INSERT INTO schema_migrations(version, applied_at) VALUES($1, NOW())`, m.Version); err != nil {
				return fmt.Errorf("migration %d up: %w", m.Version, err)
			}
			done = append(done, m.Version)
		}
		return nil
	})
	return done, err
}

// Down 回滚最近 steps 个已应用版本
func (r Runner) Down(ctx context.Context, db *pgxpool.Pool, steps int) ([]int64, error) {
	if steps <= 0 {
		return nil, nil
	}
	fsys, err := r.fsys()
	if err != nil {
		return nil, err
	}
	all, err := r.load(fsys)
	if err != nil {
		return nil, err
	}
	var done []int64
	err = withLock(ctx, db, func(q Querier) error {
		applied, err := AppliedVersions(ctx, q)
		if err != nil {
			return err
		}
		for _, m := range rollbackPlan(all, applied, steps) {
			if m.DownPath == "" {
				return fmt.Errorf("migration %d: no down script", m.Version)
			}
			if err := apply(ctx, q, fsys, m.DownPath,
				`DELETE FROM schema_migrations WHERE version = $1`, m.Version); err != nil {
				return fmt.Errorf("migration %d down: %w", m.Version, err)
			}
			done = append(done, m.Version)
		}
		return nil
	})
	return done, err
}

// Status 每个脚本版本的应用情况
func (r Runner) Status(ctx context.Context, db *pgxpool.Pool) ([]StatusEntry, error) {
	fsys, err := r.fsys()
	if err != nil {
		return nil, err
	}
	all, err := r.load(fsys)
	if err != nil {
		return nil, err
	}
	if err := EnsureTable(ctx, db); err != nil {
		return nil, err
	}
	applied, err := AppliedVersions(ctx, db)
	if err != nil {
		return nil, err
	}
	out := make([]StatusEntry, 0, len(all))
	for _, m := range all {
		e := StatusEntry{Version: m.Version, Name: m.Name}
		if at, ok := applied[m.Version]; ok {
			e.AppliedAt = &at
		}
		out = append(out, e)
	}
	return out, nil
}

// apply 脚本与版本记录在同一事务
func apply(ctx context.Context, q Querier, fsys fs.FS, file, record string, version int64) error {
	content, err := fs.ReadFile(fsys, file)
	if err != nil {
		return err
	}
	tx, err := q.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if _, err := tx.Exec(ctx, string(content)); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, record, version); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
