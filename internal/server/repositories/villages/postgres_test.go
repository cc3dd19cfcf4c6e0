package villages

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/villagekeeper/internal/common"
	"github.com/dmitrijs2005/villagekeeper/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var columns = []string{"id", "user_id", "name_kh", "name_en", "age", "gender", "dob", "image_path", "created_at"}

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresRepository(db), mock
}

func TestCreate(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	created := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`(?s)INSERT\s+INTO\s+villages\s*\(user_id,\s*name_kh,\s*name_en,\s*age,\s*gender,\s*dob,\s*image_path\).*RETURNING\s+id,\s*created_at`).
		WithArgs("u-1", "ភូមិ", "Phum", 42, "F", "1983-01-01", "u-1_Phum_a.png").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(7), created))

	v := &models.Village{
		UserID: "u-1", NameKH: "ភូមិ", NameEN: "Phum", Age: 42, Gender: "F", DOB: "1983-01-01",
		ImagePath: sql.NullString{String: "u-1_Phum_a.png", Valid: true},
	}
	got, err := repo.Create(context.Background(), v)
	require.NoError(t, err)
	assert.Equal(t, int64(7), got.ID)
	assert.Equal(t, created, got.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_DBError(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	mock.ExpectQuery(`INSERT\s+INTO\s+villages`).WillReturnError(errors.New("db down"))

	_, err := repo.Create(context.Background(), &models.Village{UserID: "u-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db error: db down")
}

func TestGetByID(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	now := time.Now()

	mock.ExpectQuery(`SELECT .* FROM villages WHERE id = \$1$`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows(columns).AddRow(int64(7), "u-1", "kh", "en", 3, "M", "", nil, now))

	got, err := repo.GetByID(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "u-1", got.OwnerID())
	assert.False(t, got.ImagePath.Valid)
}

func TestGetByIDForUpdate_Locks(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`SELECT .* FROM villages WHERE id = \$1 FOR UPDATE$`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows(columns).AddRow(int64(7), "u-1", "kh", "en", 3, "M", "", "key.png", time.Now()))

	got, err := repo.GetByIDForUpdate(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "key.png", got.ImagePath.String)
}

func TestGetByID_NotFound(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	mock.ExpectQuery(`FROM villages WHERE id`).WithArgs(int64(404)).WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), 404)
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestListByOwner(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`SELECT .* FROM villages WHERE user_id = \$1 ORDER BY id$`).
		WithArgs("u-1").
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow(int64(1), "u-1", "a", "A", 1, "F", "", nil, time.Now()).
			AddRow(int64(2), "u-1", "b", "B", 2, "M", "", nil, time.Now()))

	got, err := repo.ListByOwner(context.Background(), "u-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	for _, v := range got {
		assert.Equal(t, "u-1", v.UserID)
	}
}

func TestListByOwner_EmptyIsNotNil(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	mock.ExpectQuery(`FROM villages WHERE user_id`).WithArgs("nobody").WillReturnRows(sqlmock.NewRows(columns))

	got, err := repo.ListByOwner(context.Background(), "nobody")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestListByOwner_ScanError(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	mock.ExpectQuery(`FROM villages WHERE user_id`).
		WillReturnRows(sqlmock.NewRows(columns).AddRow("not-an-int", "u-1", "a", "A", 1, "F", "", nil, time.Now()))

	_, err := repo.ListByOwner(context.Background(), "u-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scan error")
}

func TestDelete(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		wantErr  error
	}{
		{"deleted", 1, nil},
		{"missing", 0, common.ErrorNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newRepoWithMock(t)
			mock.ExpectExec(`^DELETE FROM villages WHERE id = \$1$`).
				WithArgs(int64(9)).
				WillReturnResult(sqlmock.NewResult(0, tt.affected))

			err := repo.Delete(context.Background(), 9)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}
