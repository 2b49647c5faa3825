package repositories

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/BradenHooton/molar/internal/database"
	"github.com/BradenHooton/molar/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ClientRepository struct {
	pool *pgxpool.Pool
}

func NewClientRepository(db *database.DB) *ClientRepository {
	return &ClientRepository{pool: db.Pool}
}

// rowScanner interface for scanning rows (supports both single row and multiple rows)
type rowScanner interface {
	Scan(dest ...interface{}) error
}

const clientColumns = `c.id, c.first_name, c.last_name, c.email, c.phone, c.date_of_birth, c.address,
	c.status, c.medical_notes, c.notes, c.is_active, c.deactivated_at, c.created_at, c.updated_at`

// treatmentAggregate derives per-client treatment stats relative to $1 (now).
const treatmentAggregate = `
	LEFT JOIN LATERAL (
		SELECT COUNT(*) AS treatment_count,
		       MAX(tr.treatment_date) FILTER (WHERE tr.treatment_date <= $1) AS last_visit,
		       MIN(tr.follow_up_date) FILTER (WHERE tr.follow_up_date > $1) AS next_appointment
		FROM treatments tr
		WHERE tr.client_id = c.id
	) t ON TRUE`

// sortColumns whitelists ORDER BY expressions; user input never reaches SQL text.
// "name" sorts by first name only.
var sortColumns = map[models.SortField]string{
	models.SortByName:            "lower(c.first_name)",
	models.SortByPhone:           "c.phone",
	models.SortByLastVisit:       "t.last_visit",
	models.SortByNextAppointment: "t.next_appointment",
	models.SortByDateOfBirth:     "c.date_of_birth",
}

func sortColumn(field models.SortField) string {
	if col, ok := sortColumns[field]; ok {
		return col
	}
	return sortColumns[models.SortByName]
}

func sortDirection(order models.SortOrder) string {
	if order == models.SortDesc {
		return "DESC"
	}
	return "ASC"
}

// escapeLike escapes LIKE metacharacters so search text matches literally
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// clientFilter builds the WHERE clause for a roster query. Placeholders are
// numbered from firstArg so the clause can follow other bound parameters.
func clientFilter(q models.ClientQuery, firstArg int) (string, []interface{}) {
	conds := []string{"c.is_active = TRUE"}
	args := make([]interface{}, 0, 2)
	next := firstArg

	if q.Status != "" && q.Status != models.FilterAll {
		conds = append(conds, fmt.Sprintf("c.status = $%d", next))
		args = append(args, string(q.Status))
		next++
	}

	if q.Search != "" {
		p := fmt.Sprintf("$%d", next)
		conds = append(conds, fmt.Sprintf(`(c.first_name ILIKE %[1]s ESCAPE '\'
			OR c.last_name ILIKE %[1]s ESCAPE '\'
			OR (c.first_name || ' ' || c.last_name) ILIKE %[1]s ESCAPE '\'
			OR c.phone ILIKE %[1]s ESCAPE '\'
			OR c.email ILIKE %[1]s ESCAPE '\')`, p))
		args = append(args, "%"+escapeLike(q.Search)+"%")
	}

	return "WHERE " + strings.Join(conds, " AND "), args
}

func scanClientSummary(scanner rowScanner) (*models.ClientSummary, error) {
	var s models.ClientSummary
	var status string
	err := scanner.Scan(
		&s.ID, &s.FirstName, &s.LastName, &s.Email, &s.Phone, &s.DateOfBirth, &s.Address,
		&status, &s.MedicalNotes, &s.Notes, &s.IsActive, &s.DeactivatedAt, &s.CreatedAt, &s.UpdatedAt,
		&s.TreatmentCount, &s.LastVisit, &s.NextAppointment,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	s.Status = models.ClientStatus(status)
	return &s, nil
}

// List returns one page of active clients with derived treatment fields, the
// filtered total and the lifetime total of all client rows.
func (r *ClientRepository) List(ctx context.Context, q models.ClientQuery, now time.Time) (*models.ClientPage, error) {
	where, filterArgs := clientFilter(q, 2)
	dir := sortDirection(q.SortOrder)

	limitArg := 2 + len(filterArgs)
	query := fmt.Sprintf(`
		SELECT %s, t.treatment_count, t.last_visit, t.next_appointment
		FROM clients c %s
		%s
		ORDER BY %s %s NULLS LAST, c.created_at %s, c.id %s
		LIMIT $%d OFFSET $%d`,
		clientColumns, treatmentAggregate, where,
		sortColumn(q.SortBy), dir, dir, dir,
		limitArg, limitArg+1,
	)

	countWhere, countArgs := clientFilter(q, 1)
	var filtered int64
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM clients c "+countWhere, countArgs...).Scan(&filtered); err != nil {
		return nil, fmt.Errorf("failed to count clients: %w", database.MapPostgresError(err))
	}

	var overall int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM clients`).Scan(&overall); err != nil {
		return nil, fmt.Errorf("failed to count all clients: %w", database.MapPostgresError(err))
	}

	summaries := make([]models.ClientSummary, 0, q.Limit)
	// Pages past the filtered total are empty; skip the row query
	if int64(q.Offset()) < filtered {
		args := append([]interface{}{now}, filterArgs...)
		args = append(args, q.Limit, q.Offset())

		rows, err := r.pool.Query(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("failed to list clients: %w", database.MapPostgresError(err))
		}
		defer rows.Close()

		for rows.Next() {
			s, err := scanClientSummary(rows)
			if err != nil {
				return nil, fmt.Errorf("failed to scan client: %w", err)
			}
			summaries = append(summaries, *s)
		}
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("error iterating rows: %w", err)
		}
	}

	return &models.ClientPage{
		Rows:         summaries,
		Pagination:   models.NewPagination(q.Page, q.Limit, filtered),
		TotalOverall: overall,
	}, nil
}

// GetByID returns an active client with derived treatment fields
func (r *ClientRepository) GetByID(ctx context.Context, id string, now time.Time) (*models.ClientSummary, error) {
	query := fmt.Sprintf(`
		SELECT %s, t.treatment_count, t.last_visit, t.next_appointment
		FROM clients c %s
		WHERE c.id = $2 AND c.is_active = TRUE`,
		clientColumns, treatmentAggregate,
	)
	return scanClientSummary(r.pool.QueryRow(ctx, query, now, id))
}

func (r *ClientRepository) Create(ctx context.Context, client *models.Client) (*models.Client, error) {
	client.ID = uuid.New().String()
	if client.Status == "" {
		client.Status = models.StatusInTreatment
	}

	query := `
		INSERT INTO clients (id, first_name, last_name, email, phone, date_of_birth, address, status, medical_notes, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING is_active, created_at, updated_at
	`
	err := r.pool.QueryRow(ctx, query,
		client.ID, client.FirstName, client.LastName, client.Email, client.Phone,
		client.DateOfBirth, client.Address, string(client.Status), client.MedicalNotes, client.Notes,
	).Scan(&client.IsActive, &client.CreatedAt, &client.UpdatedAt)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return client, nil
}

// UpdateStatus sets the status of one active client
func (r *ClientRepository) UpdateStatus(ctx context.Context, id string, status models.ClientStatus) error {
	query := `UPDATE clients SET status = $1, updated_at = NOW() WHERE id = $2 AND is_active = TRUE`

	result, err := r.pool.Exec(ctx, query, string(status), id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// BulkUpdateStatus sets the status of every active client in ids with a single
// statement and returns how many rows changed. Unknown ids are skipped.
func (r *ClientRepository) BulkUpdateStatus(ctx context.Context, ids []string, status models.ClientStatus) (int64, error) {
	query := `UPDATE clients SET status = $1, updated_at = NOW() WHERE id = ANY($2::uuid[]) AND is_active = TRUE`

	result, err := r.pool.Exec(ctx, query, string(status), ids)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return result.RowsAffected(), nil
}

// BulkDeactivate soft-deletes every active client in ids
func (r *ClientRepository) BulkDeactivate(ctx context.Context, ids []string) (int64, error) {
	query := `
		UPDATE clients SET is_active = FALSE, deactivated_at = NOW(), updated_at = NOW()
		WHERE id = ANY($1::uuid[]) AND is_active = TRUE
	`
	result, err := r.pool.Exec(ctx, query, ids)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return result.RowsAffected(), nil
}

// Exists reports whether an active client with the id exists
func (r *ClientRepository) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM clients WHERE id = $1 AND is_active = TRUE)`, id,
	).Scan(&exists)
	if err != nil {
		return false, database.MapPostgresError(err)
	}
	return exists, nil
}
