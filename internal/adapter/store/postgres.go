package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/gulon/chat-delivery-service/internal/domain/model"
	"github.com/gulon/chat-delivery-service/internal/service"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var _ service.MessageRepository = (*PostgresRepository)(nil)

const messageColumns = `id, public_id, group_id, sender_id, content, kind, sent_at, edited_at, deleted, deleted_at`

// PostgresRepository stores messages in one row each.
//
// The pool is owned by the caller; Close is a no-op.
// Mutations lock the row with SELECT ... FOR UPDATE, so an edit racing a delete is serialized.
type PostgresRepository struct {
	pool  *pgxpool.Pool
	table string
}

func NewPostgresRepository(pool *pgxpool.Pool, schema string) (*PostgresRepository, error) {
	if pool == nil {
		return nil, errors.New("store: nil pool")
	}
	if schema == "" {
		schema = "public"
	}
	return &PostgresRepository{pool: pool, table: pgIdent(schema, messagesTable)}, nil
}

func (r *PostgresRepository) Insert(ctx context.Context, m *model.ChatMessage) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO `+r.table+` (public_id, group_id, sender_id, content, kind, sent_at, edited_at, deleted, deleted_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id`,
		m.PublicID, m.GroupID, m.SenderID, m.Content, int16(m.Kind), m.SentAt, m.EditedAt, m.Deleted, m.DeletedAt,
	).Scan(&m.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("%w: message %s already exists", model.ErrConflict, m.PublicID)
		}
		return fmt.Errorf("store: insert message: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, publicID uuid.UUID) (*model.ChatMessage, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+messageColumns+` FROM `+r.table+` WHERE public_id = $1`, publicID)
	m, err := scanMessage(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrMessageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get message: %w", err)
	}
	return m, nil
}

func (r *PostgresRepository) Update(ctx context.Context, publicID uuid.UUID, fn func(m *model.ChatMessage) error) (*model.ChatMessage, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted, AccessMode: pgx.ReadWrite})
	if err != nil {
		return nil, fmt.Errorf("store: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx, `SELECT `+messageColumns+` FROM `+r.table+` WHERE public_id = $1 FOR UPDATE`, publicID)
	m, err := scanMessage(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrMessageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: lock message: %w", err)
	}

	if err := fn(m); err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx,
		`UPDATE `+r.table+`
		    SET content = $2, edited_at = $3, deleted = $4, deleted_at = $5
		  WHERE id = $1`,
		m.ID, m.Content, m.EditedAt, m.Deleted, m.DeletedAt,
	); err != nil {
		return nil, fmt.Errorf("store: update message: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("store: commit: %w", err)
	}
	return m, nil
}

func (r *PostgresRepository) Find(ctx context.Context, q model.MessageQuery) ([]model.ChatMessage, int64, error) {
	where, args := buildWhere(q.Filter)

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM `+r.table+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("store: count messages: %w", err)
	}

	sql := `SELECT ` + messageColumns + ` FROM ` + r.table + where + ` ORDER BY sent_at DESC, id DESC`
	if q.Limit > 0 {
		args = append(args, q.Limit)
		sql += ` LIMIT $` + strconv.Itoa(len(args))
	}
	if q.Offset > 0 {
		args = append(args, q.Offset)
		sql += ` OFFSET $` + strconv.Itoa(len(args))
	}

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("store: find messages: %w", err)
	}
	defer rows.Close()

	items := make([]model.ChatMessage, 0)
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("store: scan message: %w", err)
		}
		items = append(items, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("store: find messages: %w", err)
	}
	return items, total, nil
}

func (r *PostgresRepository) Close() error { return nil }

// buildWhere renders the filter as a parameterized WHERE clause.
func buildWhere(f model.SearchFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, strings.ReplaceAll(cond, "?", "$"+strconv.Itoa(len(args))))
	}

	if f.GroupID != "" {
		add("group_id = ?", f.GroupID)
	}
	if f.SenderID != "" {
		add("sender_id = ?", f.SenderID)
	}
	if f.Kind != nil {
		add("kind = ?", int16(*f.Kind))
	}
	if f.SentSince != nil {
		add("sent_at >= ?", *f.SentSince)
	}
	if f.SentAfter != nil {
		add("sent_at > ?", *f.SentAfter)
	}
	if f.SentBefore != nil {
		add("sent_at < ?", *f.SentBefore)
	}
	if f.Keyword != "" {
		// strpos avoids escaping LIKE wildcards in user input.
		add("strpos(lower(content), lower(?)) > 0", f.Keyword)
	}
	if !f.IncludeDeleted {
		conds = append(conds, "NOT deleted")
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func scanMessage(row pgx.Row) (*model.ChatMessage, error) {
	var (
		m    model.ChatMessage
		kind int16
	)
	if err := row.Scan(&m.ID, &m.PublicID, &m.GroupID, &m.SenderID, &m.Content, &kind,
		&m.SentAt, &m.EditedAt, &m.Deleted, &m.DeletedAt); err != nil {
		return nil, err
	}
	m.Kind = model.MessageKind(kind)
	return &m, nil
}
