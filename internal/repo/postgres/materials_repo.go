package postgres

import (
	"context"
	"errors"

	"github.com/geocoder89/sitehub/internal/domain/material"
	"github.com/geocoder89/sitehub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const materialColumns = `id, project_id, name, category, unit, unit_price, supplier, description,
	stock_quantity, used_quantity, created_at, updated_at`

type MaterialsRepo struct {
	base
}

func NewMaterialsRepo(pool *pgxpool.Pool, prom *observability.Prom) *MaterialsRepo {
	return &MaterialsRepo{base{pool: pool, prom: prom}}
}

func scanMaterial(row pgx.Row) (material.Material, error) {
	var m material.Material

	err := row.Scan(
		&m.ID, &m.ProjectID, &m.Name, &m.Category, &m.Unit, &m.UnitPrice, &m.Supplier, &m.Description,
		&m.StockQuantity, &m.UsedQuantity, &m.CreatedAt, &m.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return material.Material{}, material.ErrNotFound
	}
	return m, err
}

func (r *MaterialsRepo) Create(ctx context.Context, m material.Material) error {
	return r.observe("materials.create", func() error {
		_, err := r.pool.Exec(ctx, `INSERT INTO materials (`+materialColumns+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
			m.ID, m.ProjectID, m.Name, m.Category, m.Unit, m.UnitPrice, m.Supplier, m.Description,
			m.StockQuantity, m.UsedQuantity, m.CreatedAt, m.UpdatedAt,
		)
		return err
	})
}

func (r *MaterialsRepo) GetByID(ctx context.Context, projectID, id string) (m material.Material, err error) {
	err = r.observe("materials.get_by_id", func() error {
		m, err = scanMaterial(r.pool.QueryRow(ctx,
			`SELECT `+materialColumns+` FROM materials WHERE project_id = $1 AND id = $2`, projectID, id))
		return err
	})
	return m, err
}

func (r *MaterialsRepo) List(ctx context.Context, projectID string, f material.ListFilter) ([]material.Material, error) {
	q := `SELECT ` + materialColumns + ` FROM materials WHERE project_id = $1`
	args := []any{projectID}

	if f.Category != nil {
		args = append(args, *f.Category)
		q += ` AND category = $` + itoa(len(args))
	}
	if f.Search != "" {
		args = append(args, containsPattern(f.Search))
		n := itoa(len(args))
		q += ` AND (name ILIKE $` + n + ` ESCAPE '\' OR supplier ILIKE $` + n + ` ESCAPE '\')`
	}
	q += ` ORDER BY name ASC`

	out := []material.Material{}
	err := r.observe("materials.list", func() error {
		rows, err := r.pool.Query(ctx, q, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			m, err := scanMaterial(rows)
			if err != nil {
				return err
			}
			out = append(out, m)
		}
		return rows.Err()
	})

	return out, err
}

func (r *MaterialsRepo) Update(ctx context.Context, projectID, id string, req material.UpdateMaterialRequest) (material.Material, error) {
	var u updateSet

	if req.Name != nil {
		u.add("name", *req.Name)
	}
	if req.Category != nil {
		u.add("category", *req.Category)
	}
	if req.Unit != nil {
		u.add("unit", *req.Unit)
	}
	if req.UnitPrice != nil {
		u.add("unit_price", *req.UnitPrice)
	}
	if req.Supplier != nil {
		u.add("supplier", *req.Supplier)
	}
	if req.Description != nil {
		u.add("description", *req.Description)
	}
	if u.empty() {
		return material.Material{}, material.ErrNoChanges
	}

	q := `UPDATE materials SET ` + joinSets(u.sets) + `, updated_at = NOW()
		WHERE project_id = ` + u.arg(projectID) + ` AND id = ` + u.arg(id) + `
		RETURNING ` + materialColumns

	var m material.Material
	err := r.observe("materials.update", func() error {
		var err error
		m, err = scanMaterial(r.pool.QueryRow(ctx, q, u.args...))
		return err
	})
	return m, err
}

func (r *MaterialsRepo) AddStock(ctx context.Context, projectID, id string, qty float64) (material.Material, error) {
	var m material.Material
	err := r.observe("materials.add_stock", func() error {
		var err error
		m, err = scanMaterial(r.pool.QueryRow(ctx, `
			UPDATE materials
			SET stock_quantity = stock_quantity + $3, updated_at = NOW()
			WHERE project_id = $1 AND id = $2
			RETURNING `+materialColumns,
			projectID, id, qty,
		))
		return err
	})
	return m, err
}

// Consume moves qty from stock to used. The row is locked so two
// concurrent consumers cannot both pass the stock check.
func (r *MaterialsRepo) Consume(ctx context.Context, projectID, id string, qty float64) (material.Material, error) {
	var m material.Material

	err := r.inTx(ctx, func(tx pgx.Tx) error {
		var stock float64
		err := r.observe("materials.consume.lock", func() error {
			return tx.QueryRow(ctx, `
				SELECT stock_quantity FROM materials
				WHERE project_id = $1 AND id = $2
				FOR UPDATE
			`, projectID, id).Scan(&stock)
		})
		if errors.Is(err, pgx.ErrNoRows) {
			return material.ErrNotFound
		}
		if err != nil {
			return err
		}
		if stock < qty {
			return material.ErrInsufficientStock
		}

		return r.observe("materials.consume", func() error {
			var err error
			m, err = scanMaterial(tx.QueryRow(ctx, `
				UPDATE materials
				SET stock_quantity = stock_quantity - $3,
				    used_quantity = used_quantity + $3,
				    updated_at = NOW()
				WHERE project_id = $1 AND id = $2
				RETURNING `+materialColumns,
				projectID, id, qty,
			))
			return err
		})
	})

	return m, err
}

func (r *MaterialsRepo) Delete(ctx context.Context, projectID, id string) error {
	var n int64
	err := r.observe("materials.delete", func() error {
		tag, err := r.pool.Exec(ctx, `DELETE FROM materials WHERE project_id = $1 AND id = $2`, projectID, id)
		n = tag.RowsAffected()
		return err
	})
	if err != nil {
		return err
	}
	if n == 0 {
		return material.ErrNotFound
	}
	return nil
}
