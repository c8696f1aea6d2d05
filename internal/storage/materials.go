package storage

import (
	"context"

	"studybuddy/internal/models"
)

const materialColumns = `id, user_id, COALESCE(subject_id, ''), name, COALESCE(content_type, ''), size, path,
	COALESCE(url, ''), page_count, COALESCE(preview, ''), views, downloads, created_at`

func scanMaterial(row interface{ Scan(...any) error }) (models.Material, error) {
	var m models.Material
	err := row.Scan(&m.ID, &m.UserID, &m.SubjectID, &m.Name, &m.ContentType, &m.Size, &m.Path,
		&m.URL, &m.PageCount, &m.Preview, &m.Views, &m.Downloads, &m.CreatedAt)
	return m, err
}

func (s *SQLiteStorage) SaveMaterial(ctx context.Context, m *models.Material) error {
	m.CreatedAt = s.stamp(m.CreatedAt)
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO study_materials
			(id, user_id, subject_id, name, content_type, size, path, url, page_count, preview, views, downloads, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, m.ID, m.UserID, m.SubjectID, m.Name, m.ContentType, m.Size, m.Path, m.URL, m.PageCount, m.Preview,
		m.Views, m.Downloads, m.CreatedAt)
	return err
}

func (s *SQLiteStorage) GetMaterial(ctx context.Context, userID, id string) (*models.Material, error) {
	m, err := scanMaterial(s.db.QueryRowContext(ctx,
		`SELECT `+materialColumns+` FROM study_materials WHERE id = ? AND user_id = ?`, id, userID))
	if err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

func (s *SQLiteStorage) GetMaterials(ctx context.Context, userID string) ([]models.Material, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+materialColumns+` FROM study_materials WHERE user_id = ? ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	materials := []models.Material{}
	for rows.Next() {
		m, err := scanMaterial(rows)
		if err != nil {
			return nil, err
		}
		materials = append(materials, m)
	}
	return materials, rows.Err()
}

func (s *SQLiteStorage) IncrementMaterialViews(ctx context.Context, userID, id string) error {
	return affected(s.db.ExecContext(ctx,
		`UPDATE study_materials SET views = views + 1 WHERE id = ? AND user_id = ?`, id, userID))
}

func (s *SQLiteStorage) DeleteMaterial(ctx context.Context, userID, id string) error {
	return affected(s.db.ExecContext(ctx, `DELETE FROM study_materials WHERE id = ? AND user_id = ?`, id, userID))
}
