package postgres

import (
	"context"
	"errors"

	"github.com/geocoder89/sitehub/internal/domain/document"
	"github.com/geocoder89/sitehub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const documentColumns = `id, project_id, uploaded_by, title, category, file_url, current_version,
	created_at, updated_at`

type DocumentsRepo struct {
	base
}

func NewDocumentsRepo(pool *pgxpool.Pool, prom *observability.Prom) *DocumentsRepo {
	return &DocumentsRepo{base{pool: pool, prom: prom}}
}

func scanDocument(row pgx.Row) (document.Document, error) {
	var d document.Document
	var category string

	err := row.Scan(
		&d.ID, &d.ProjectID, &d.UploadedBy, &d.Title, &category, &d.FileURL, &d.CurrentVersion,
		&d.CreatedAt, &d.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return document.Document{}, document.ErrNotFound
	}
	if err != nil {
		return document.Document{}, err
	}

	d.Category = document.Category(category)
	return d, nil
}

func insertVersion(ctx context.Context, tx pgx.Tx, b base, v document.Version) error {
	return b.observe("documents.insert_version", func() error {
		_, err := tx.Exec(ctx, `
			INSERT INTO document_versions (id, document_id, version, file_url, notes, created_by, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			v.ID, v.DocumentID, v.Version, v.FileURL, v.Notes, v.CreatedBy, v.CreatedAt,
		)
		return err
	})
}

// Create stores the document together with its first version.
func (r *DocumentsRepo) Create(ctx context.Context, d document.Document, v document.Version) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		err := r.observe("documents.create", func() error {
			_, err := tx.Exec(ctx, `INSERT INTO documents (`+documentColumns+`)
				VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
				d.ID, d.ProjectID, d.UploadedBy, d.Title, string(d.Category), d.FileURL, d.CurrentVersion,
				d.CreatedAt, d.UpdatedAt,
			)
			return err
		})
		if err != nil {
			return err
		}

		return insertVersion(ctx, tx, r.base, v)
	})
}

func (r *DocumentsRepo) List(ctx context.Context, projectID string, f document.ListFilter) ([]document.Document, error) {
	q := `SELECT ` + documentColumns + ` FROM documents WHERE project_id = $1`
	args := []any{projectID}

	if f.Category != nil {
		args = append(args, string(*f.Category))
		q += ` AND category = $2`
	}
	q += ` ORDER BY updated_at DESC`

	out := []document.Document{}
	err := r.observe("documents.list", func() error {
		rows, err := r.pool.Query(ctx, q, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			d, err := scanDocument(rows)
			if err != nil {
				return err
			}
			out = append(out, d)
		}
		return rows.Err()
	})

	return out, err
}

// AddVersion assigns the next version number under a row lock on the
// document and points the document at the new file.
func (r *DocumentsRepo) AddVersion(ctx context.Context, projectID string, v document.Version) (document.Version, error) {
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		var current int
		err := r.observe("documents.lock", func() error {
			return tx.QueryRow(ctx, `
				SELECT current_version FROM documents
				WHERE project_id = $1 AND id = $2
				FOR UPDATE
			`, projectID, v.DocumentID).Scan(&current)
		})
		if errors.Is(err, pgx.ErrNoRows) {
			return document.ErrNotFound
		}
		if err != nil {
			return err
		}

		v.Version = current + 1
		if err := insertVersion(ctx, tx, r.base, v); err != nil {
			return err
		}

		return r.observe("documents.bump_version", func() error {
			_, err := tx.Exec(ctx, `
				UPDATE documents
				SET current_version = $2, file_url = $3, updated_at = NOW()
				WHERE id = $1
			`, v.DocumentID, v.Version, v.FileURL)
			return err
		})
	})
	if err != nil {
		return document.Version{}, err
	}

	return v, nil
}

func (r *DocumentsRepo) ListVersions(ctx context.Context, projectID, documentID string) ([]document.Version, error) {
	out := []document.Version{}

	err := r.observe("documents.list_versions", func() error {
		var exists bool
		err := r.pool.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM documents WHERE project_id = $1 AND id = $2)`,
			projectID, documentID).Scan(&exists)
		if err != nil {
			return err
		}
		if !exists {
			return document.ErrNotFound
		}

		rows, err := r.pool.Query(ctx, `
			SELECT id, document_id, version, file_url, notes, created_by, created_at
			FROM document_versions
			WHERE document_id = $1
			ORDER BY version DESC
		`, documentID)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var v document.Version
			if err := rows.Scan(&v.ID, &v.DocumentID, &v.Version, &v.FileURL, &v.Notes, &v.CreatedBy, &v.CreatedAt); err != nil {
				return err
			}
			out = append(out, v)
		}
		return rows.Err()
	})

	return out, err
}

func (r *DocumentsRepo) Delete(ctx context.Context, projectID, id string) error {
	var n int64
	err := r.observe("documents.delete", func() error {
		tag, err := r.pool.Exec(ctx, `DELETE FROM documents WHERE project_id = $1 AND id = $2`, projectID, id)
		n = tag.RowsAffected()
		return err
	})
	if err != nil {
		return err
	}
	if n == 0 {
		return document.ErrNotFound
	}
	return nil
}
