package repositories

import (
	"context"
	"fmt"

	"github.com/BradenHooton/molar/internal/database"
	"github.com/BradenHooton/molar/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type TreatmentRepository struct {
	pool *pgxpool.Pool
}

func NewTreatmentRepository(db *database.DB) *TreatmentRepository {
	return &TreatmentRepository{pool: db.Pool}
}

func (r *TreatmentRepository) Create(ctx context.Context, t *models.Treatment) (*models.Treatment, error) {
	t.ID = uuid.New().String()

	query := `
		INSERT INTO treatments (id, client_id, treatment_date, procedure_name, tooth, notes, cost_cents, follow_up_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`
	err := r.pool.QueryRow(ctx, query,
		t.ID, t.ClientID, t.TreatmentDate, t.Procedure, t.Tooth, t.Notes, t.CostCents, t.FollowUpDate,
	).Scan(&t.CreatedAt)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return t, nil
}

// ListByClient returns a client's treatments, most recent first
func (r *TreatmentRepository) ListByClient(ctx context.Context, clientID string) ([]models.Treatment, error) {
	query := `
		SELECT id, client_id, treatment_date, procedure_name, tooth, notes, cost_cents, follow_up_date, created_at
		FROM treatments WHERE client_id = $1
		ORDER BY treatment_date DESC, id
	`
	rows, err := r.pool.Query(ctx, query, clientID)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	defer rows.Close()

	treatments := make([]models.Treatment, 0)
	for rows.Next() {
		var t models.Treatment
		if err := rows.Scan(&t.ID, &t.ClientID, &t.TreatmentDate, &t.Procedure, &t.Tooth,
			&t.Notes, &t.CostCents, &t.FollowUpDate, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan treatment: %w", database.MapPostgresError(err))
		}
		treatments = append(treatments, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return treatments, nil
}
