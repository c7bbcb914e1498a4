package store_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arc-self/neatoo/neatooerr"
	"github.com/arc-self/neatoo/store"
)

func newRepo(t *testing.T) (*store.PersonRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return store.NewPersonRepository(db, zap.NewNop()), mock
}

func TestFetchByIDReturnsPerson(t *testing.T) {
	repo, mock := newRepo(t)
	mock.ExpectQuery(`SELECT id, active, age, name FROM people WHERE id = \$1`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "active", "age", "name"}).
			AddRow(int64(7), true, 42, "John"))

	p, err := repo.FetchByID(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, int64(7), p.ID)
	assert.True(t, p.Active)
	assert.Equal(t, 42, p.Age)
	assert.Equal(t, "John", p.Name)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFetchByIDMissingReturnsDomainError(t *testing.T) {
	repo, mock := newRepo(t)
	mock.ExpectQuery(`SELECT id, active, age, name FROM people WHERE id = \$1`).
		WithArgs(int64(99)).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FetchByID(context.Background(), 99)
	require.Error(t, err)
	assert.True(t, neatooerr.Is(err, neatooerr.KindDomain))
}

func TestInsertAssignsID(t *testing.T) {
	repo, mock := newRepo(t)
	p := store.NewPerson("Jane", 30)
	mock.ExpectQuery(`INSERT INTO people \(active, age, name\) VALUES \(\$1, \$2, \$3\) RETURNING id`).
		WithArgs(true, 30, "Jane").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(5)))

	require.NoError(t, repo.Insert(context.Background(), p))
	assert.Equal(t, int64(5), p.ID)
	assert.False(t, p.IsNew())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateNotFoundReturnsDomainError(t *testing.T) {
	repo, mock := newRepo(t)
	p := &store.Person{ID: 3, Active: true, Age: 1, Name: "Ghost"}
	mock.ExpectExec(`UPDATE people SET active = \$1, age = \$2, name = \$3 WHERE id = \$4`).
		WithArgs(true, 1, "Ghost", int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(context.Background(), p)
	require.Error(t, err)
	assert.True(t, neatooerr.Is(err, neatooerr.KindDomain))
}

func TestDeleteSucceeds(t *testing.T) {
	repo, mock := newRepo(t)
	p := &store.Person{ID: 9}
	mock.ExpectExec(`DELETE FROM people WHERE id = \$1`).
		WithArgs(int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Delete(context.Background(), p))
	require.NoError(t, mock.ExpectationsWereMet())
}
