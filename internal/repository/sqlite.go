package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/abrezinsky/rafflebook/internal/models"
)

// Repository provides data access methods
type Repository struct {
	db *sql.DB
}

// querier is satisfied by both *sql.DB and *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type txKey struct{}

// New creates a new Repository
func New(dbPath string) (*Repository, error) {
	db, err := sql.Open("sqlite3", dsn(dbPath))
	if err != nil {
		return nil, err
	}

	// Enable foreign key constraints
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, err
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite works best with single connection
	db.SetMaxIdleConns(1)

	repo := &Repository{db: db}

	// Run migrations
	if err := repo.migrate(); err != nil {
		return nil, err
	}

	return repo, nil
}

// dsn adds the driver options every connection needs. Transactions take the
// write lock up front so concurrent writers in other processes wait instead
// of failing on lock upgrade.
func dsn(dbPath string) string {
	sep := "?"
	if strings.Contains(dbPath, "?") {
		sep = "&"
	}
	return dbPath + sep + "_busy_timeout=5000&_txlock=immediate"
}

// DB returns the underlying database connection
func (r *Repository) DB() *sql.DB {
	return r.db
}

// Close closes the database connection
func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks if the database connection is alive
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// WithTx runs fn in a transaction, or joins the one already carried by ctx.
func (r *Repository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if txFromContext(ctx) != nil {
		return fn(ctx)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	txCtx := context.WithValue(ctx, txKey{}, tx)
	if err := fn(txCtx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func txFromContext(ctx context.Context) *sql.Tx {
	tx, _ := ctx.Value(txKey{}).(*sql.Tx)
	return tx
}

func (r *Repository) conn(ctx context.Context) querier {
	if tx := txFromContext(ctx); tx != nil {
		return tx
	}
	return r.db
}

func isConstraintViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return stderrors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint
}

// checkAffected turns a zero-row conditional write into ErrVersionConflict
func checkAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrVersionConflict
	}
	return nil
}

// migrate runs database migrations
func (r *Repository) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS draws (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL DEFAULT '',
			total_numbers INTEGER NOT NULL CHECK (total_numbers >= 10),
			price_per_ticket TEXT NOT NULL,
			currency TEXT NOT NULL,
			prizes TEXT NOT NULL,
			min_per_purchase INTEGER,
			max_per_purchase INTEGER,
			status TEXT NOT NULL,
			creator_id TEXT NOT NULL,
			sales_start_at DATETIME,
			version INTEGER NOT NULL DEFAULT 1,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS participations (
			id TEXT PRIMARY KEY,
			draw_id TEXT NOT NULL,
			numbers TEXT NOT NULL,
			payment_status TEXT NOT NULL,
			purchaser_id TEXT NOT NULL,
			purchaser_name TEXT,
			purchaser_phone TEXT,
			purchased_at DATETIME NOT NULL,
			version INTEGER NOT NULL DEFAULT 1,
			updated_at DATETIME NOT NULL,
			FOREIGN KEY (draw_id) REFERENCES draws(id)
		)`,
		`CREATE TABLE IF NOT EXISTS draw_results (
			draw_id TEXT PRIMARY KEY,
			winning_numbers TEXT NOT NULL,
			winner_names TEXT NOT NULL,
			winner_phones TEXT NOT NULL,
			winner_participation_ids TEXT NOT NULL,
			resolved_by TEXT NOT NULL,
			resolved_at DATETIME NOT NULL,
			FOREIGN KEY (draw_id) REFERENCES draws(id)
		)`,
		`CREATE TABLE IF NOT EXISTS audit_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			actor_id TEXT NOT NULL,
			action_type TEXT NOT NULL,
			target_ref TEXT NOT NULL,
			details TEXT,
			ts INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_draws_creator ON draws(creator_id)`,
		`CREATE INDEX IF NOT EXISTS idx_draws_status ON draws(status)`,
		`CREATE INDEX IF NOT EXISTS idx_participations_draw ON participations(draw_id, payment_status)`,
		`CREATE INDEX IF NOT EXISTS idx_participations_purchaser ON participations(purchaser_id)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_target ON audit_events(target_ref)`,
	}

	for _, migration := range migrations {
		if _, err := r.db.Exec(migration); err != nil {
			return err
		}
	}
	return nil
}

// ==================== Draw Methods ====================

const drawColumns = `id, title, total_numbers, price_per_ticket, currency, prizes,
	min_per_purchase, max_per_purchase, status, creator_id, sales_start_at,
	version, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDraw(row rowScanner) (*models.Draw, error) {
	var d models.Draw
	var price string
	var prizes string
	var minPer, maxPer sql.NullInt64
	var salesStart sql.NullTime
	if err := row.Scan(&d.ID, &d.Title, &d.TotalNumbers, &price, &d.Currency, &prizes,
		&minPer, &maxPer, &d.Status, &d.CreatorID, &salesStart,
		&d.Version, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}

	p, err := decimal.NewFromString(price)
	if err != nil {
		return nil, err
	}
	d.PricePerTicket = p
	if err := json.Unmarshal([]byte(prizes), &d.Prizes); err != nil {
		return nil, err
	}
	if minPer.Valid {
		v := int(minPer.Int64)
		d.MinPerPurchase = &v
	}
	if maxPer.Valid {
		v := int(maxPer.Int64)
		d.MaxPerPurchase = &v
	}
	if salesStart.Valid {
		t := salesStart.Time
		d.SalesStartAt = &t
	}
	return &d, nil
}

func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

// CreateDraw inserts a new draw
func (r *Repository) CreateDraw(ctx context.Context, d models.Draw) error {
	prizes, err := json.Marshal(d.Prizes)
	if err != nil {
		return err
	}
	_, err = r.conn(ctx).ExecContext(ctx, `
		INSERT INTO draws (`+drawColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, d.ID, d.Title, d.TotalNumbers, d.PricePerTicket.String(), d.Currency, string(prizes),
		nullableInt(d.MinPerPurchase), nullableInt(d.MaxPerPurchase), d.Status, d.CreatorID,
		nullableTime(d.SalesStartAt), d.Version, d.CreatedAt, d.UpdatedAt)
	if isConstraintViolation(err) {
		return ErrAlreadyExists
	}
	return err
}

// GetDraw retrieves a draw by ID
func (r *Repository) GetDraw(ctx context.Context, id string) (*models.Draw, error) {
	row := r.conn(ctx).QueryRowContext(ctx, `SELECT `+drawColumns+` FROM draws WHERE id = ?`, id)
	d, err := scanDraw(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return d, err
}

// ListDrawsByCreator returns the draws owned by an organizer, newest first
func (r *Repository) ListDrawsByCreator(ctx context.Context, creatorID string) ([]models.Draw, error) {
	return r.queryDraws(ctx, `SELECT `+drawColumns+` FROM draws WHERE creator_id = ? ORDER BY created_at DESC`, creatorID)
}

// ListDrawsByStatus returns the draws in any of the given statuses
func (r *Repository) ListDrawsByStatus(ctx context.Context, statuses ...models.DrawStatus) ([]models.Draw, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	args := make([]any, len(statuses))
	for i, s := range statuses {
		args[i] = s
	}
	return r.queryDraws(ctx, `SELECT `+drawColumns+` FROM draws WHERE status IN (`+placeholders(len(statuses))+`) ORDER BY created_at`, args...)
}

func (r *Repository) queryDraws(ctx context.Context, query string, args ...any) ([]models.Draw, error) {
	rows, err := r.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var draws []models.Draw
	for rows.Next() {
		d, err := scanDraw(rows)
		if err != nil {
			return nil, err
		}
		draws = append(draws, *d)
	}
	return draws, rows.Err()
}

// UpdateDrawStatus sets a draw's status if its version is still expectedVersion
func (r *Repository) UpdateDrawStatus(ctx context.Context, id string, expectedVersion int64, status models.DrawStatus, now time.Time) error {
	res, err := r.conn(ctx).ExecContext(ctx, `
		UPDATE draws SET status = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?
	`, status, now, id, expectedVersion)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

// BumpDrawVersion advances a draw's version if it is still expectedVersion.
// Writers that depend on the draw's participation snapshot commit through this.
func (r *Repository) BumpDrawVersion(ctx context.Context, id string, expectedVersion int64, now time.Time) error {
	res, err := r.conn(ctx).ExecContext(ctx, `
		UPDATE draws SET version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?
	`, now, id, expectedVersion)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

// ==================== Participation Methods ====================

const participationColumns = `id, draw_id, numbers, payment_status, purchaser_id,
	purchaser_name, purchaser_phone, purchased_at, version, updated_at`

func scanParticipation(row rowScanner) (*models.Participation, error) {
	var p models.Participation
	var numbers string
	var name, phone sql.NullString
	if err := row.Scan(&p.ID, &p.DrawID, &numbers, &p.PaymentStatus, &p.PurchaserID,
		&name, &phone, &p.PurchaseTimestamp, &p.Version, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(numbers), &p.Numbers); err != nil {
		return nil, err
	}
	p.PurchaserName = name.String
	p.PurchaserPhone = phone.String
	return &p, nil
}

// InsertParticipation stores a new participation
func (r *Repository) InsertParticipation(ctx context.Context, p models.Participation) error {
	numbers, err := json.Marshal(p.Numbers)
	if err != nil {
		return err
	}
	_, err = r.conn(ctx).ExecContext(ctx, `
		INSERT INTO participations (`+participationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.DrawID, string(numbers), p.PaymentStatus, p.PurchaserID,
		p.PurchaserName, p.PurchaserPhone, p.PurchaseTimestamp, p.Version, p.UpdatedAt)
	if isConstraintViolation(err) {
		return ErrAlreadyExists
	}
	return err
}

// GetParticipation retrieves a participation by ID
func (r *Repository) GetParticipation(ctx context.Context, id string) (*models.Participation, error) {
	row := r.conn(ctx).QueryRowContext(ctx, `SELECT `+participationColumns+` FROM participations WHERE id = ?`, id)
	p, err := scanParticipation(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return p, err
}

// ListParticipationsByDraw returns a draw's participations in purchase order,
// optionally restricted to the given payment statuses
func (r *Repository) ListParticipationsByDraw(ctx context.Context, drawID string, statuses ...models.PaymentStatus) ([]models.Participation, error) {
	query := `SELECT ` + participationColumns + ` FROM participations WHERE draw_id = ?`
	args := []any{drawID}
	if len(statuses) > 0 {
		query += ` AND payment_status IN (` + placeholders(len(statuses)) + `)`
		for _, s := range statuses {
			args = append(args, s)
		}
	}
	query += ` ORDER BY purchased_at, id`
	return r.queryParticipations(ctx, query, args...)
}

// ListParticipationsByPurchaser returns every participation of one purchaser, newest first
func (r *Repository) ListParticipationsByPurchaser(ctx context.Context, purchaserID string) ([]models.Participation, error) {
	return r.queryParticipations(ctx, `SELECT `+participationColumns+` FROM participations WHERE purchaser_id = ? ORDER BY purchased_at DESC, id`, purchaserID)
}

func (r *Repository) queryParticipations(ctx context.Context, query string, args ...any) ([]models.Participation, error) {
	rows, err := r.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var participations []models.Participation
	for rows.Next() {
		p, err := scanParticipation(rows)
		if err != nil {
			return nil, err
		}
		participations = append(participations, *p)
	}
	return participations, rows.Err()
}

// UpdatePaymentStatus sets a participation's payment status if its version is still expectedVersion
func (r *Repository) UpdatePaymentStatus(ctx context.Context, id string, expectedVersion int64, status models.PaymentStatus, now time.Time) error {
	res, err := r.conn(ctx).ExecContext(ctx, `
		UPDATE participations SET payment_status = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?
	`, status, now, id, expectedVersion)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

// DeleteParticipation removes a participation if its version is still expectedVersion
func (r *Repository) DeleteParticipation(ctx context.Context, id string, expectedVersion int64) error {
	res, err := r.conn(ctx).ExecContext(ctx, `DELETE FROM participations WHERE id = ? AND version = ?`, id, expectedVersion)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

// ==================== Result Methods ====================

// InsertDrawResult stores a draw result; a second result for the same draw fails with ErrAlreadyExists
func (r *Repository) InsertDrawResult(ctx context.Context, res models.DrawResult) error {
	encoded := make([]string, 0, 4)
	for _, v := range []any{res.WinningNumbers, res.WinnerNames, res.WinnerPhones, res.WinnerParticipationIDs} {
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		encoded = append(encoded, string(b))
	}

	_, err := r.conn(ctx).ExecContext(ctx, `
		INSERT INTO draw_results (draw_id, winning_numbers, winner_names, winner_phones,
			winner_participation_ids, resolved_by, resolved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, res.DrawID, encoded[0], encoded[1], encoded[2], encoded[3], res.ResolvedBy, res.ResolvedAt)
	if isConstraintViolation(err) {
		return ErrAlreadyExists
	}
	return err
}

// GetDrawResult retrieves the result of a draw
func (r *Repository) GetDrawResult(ctx context.Context, drawID string) (*models.DrawResult, error) {
	var res models.DrawResult
	var numbers, names, phones, ids string
	err := r.conn(ctx).QueryRowContext(ctx, `
		SELECT draw_id, winning_numbers, winner_names, winner_phones, winner_participation_ids, resolved_by, resolved_at
		FROM draw_results WHERE draw_id = ?
	`, drawID).Scan(&res.DrawID, &numbers, &names, &phones, &ids, &res.ResolvedBy, &res.ResolvedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	targets := []struct {
		raw string
		dst any
	}{
		{numbers, &res.WinningNumbers},
		{names, &res.WinnerNames},
		{phones, &res.WinnerPhones},
		{ids, &res.WinnerParticipationIDs},
	}
	for _, t := range targets {
		if err := json.Unmarshal([]byte(t.raw), t.dst); err != nil {
			return nil, err
		}
	}
	return &res, nil
}

// ==================== Audit Methods ====================

// AppendAuditEvent appends an audit event and returns its ID
func (r *Repository) AppendAuditEvent(ctx context.Context, e models.AuditEvent) (int64, error) {
	var details any
	if len(e.Details) > 0 {
		details = string(e.Details)
	}
	res, err := r.conn(ctx).ExecContext(ctx, `
		INSERT INTO audit_events (actor_id, action_type, target_ref, details, ts)
		VALUES (?, ?, ?, ?, ?)
	`, e.ActorID, e.ActionType, e.TargetRef, details, e.Timestamp.UnixNano())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ListAuditEvents returns audit events in append order
func (r *Repository) ListAuditEvents(ctx context.Context, filter models.AuditFilter) ([]models.AuditEvent, error) {
	query := `SELECT id, actor_id, action_type, target_ref, details, ts FROM audit_events WHERE 1 = 1`
	var args []any
	if filter.TargetRef != "" {
		query += ` AND target_ref = ?`
		args = append(args, filter.TargetRef)
	}
	if filter.ActionType != "" {
		query += ` AND action_type = ?`
		args = append(args, filter.ActionType)
	}
	query += ` ORDER BY id`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := r.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []models.AuditEvent
	for rows.Next() {
		var e models.AuditEvent
		var details sql.NullString
		var ts int64
		if err := rows.Scan(&e.ID, &e.ActorID, &e.ActionType, &e.TargetRef, &details, &ts); err != nil {
			return nil, err
		}
		if details.Valid {
			e.Details = json.RawMessage(details.String)
		}
		e.Timestamp = time.Unix(0, ts).UTC()
		events = append(events, e)
	}
	return events, rows.Err()
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}
