package repositories

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newMockRepository(t *testing.T) (*CustomerRepository, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 db,
		PreferSimpleProtocol: true,
	}), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	return NewCustomerRepository(gormDB), mock
}

func customerRows(ids ...int) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"id", "first_name", "last_name"})
	for _, id := range ids {
		rows.AddRow(id, "Jack", "Bauer")
	}
	return rows
}

func emptyAddressRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "customer_id", "street", "city", "zip"})
}

func Test_FindByLastName_Filters_On_Last_Name(t *testing.T) {
	assert := require.New(t)
	repo, mock := newMockRepository(t)

	mock.ExpectQuery(`SELECT .* FROM "customers" WHERE last_name = \$1`).
		WithArgs("Bauer").
		WillReturnRows(customerRows(1, 2))
	mock.ExpectQuery(`SELECT .* FROM "addresses" WHERE .*customer_id.*`).
		WillReturnRows(emptyAddressRows())

	customers, err := repo.FindByLastName("Bauer")
	assert.NoError(err)
	assert.Len(customers, 2)
	assert.Equal("Bauer", customers[0].LastName)
	assert.NoError(mock.ExpectationsWereMet())
}

func Test_FindByFirstNameAndLastName_Uses_Both_Arguments(t *testing.T) {
	assert := require.New(t)
	repo, mock := newMockRepository(t)

	mock.ExpectQuery(`SELECT .* FROM "customers" WHERE first_name = \$1 AND last_name = \$2`).
		WithArgs("Jack", "Bauer").
		WillReturnRows(customerRows(1))
	mock.ExpectQuery(`SELECT .* FROM "addresses" WHERE .*customer_id.*`).
		WillReturnRows(emptyAddressRows())

	customers, err := repo.FindByFirstNameAndLastName("Jack", "Bauer")
	assert.NoError(err)
	assert.Len(customers, 1)
	assert.NoError(mock.ExpectationsWereMet())
}

func Test_FindByLastNameOrderByFirstNameAsc_Orders_Results(t *testing.T) {
	assert := require.New(t)
	repo, mock := newMockRepository(t)

	mock.ExpectQuery(`SELECT .* FROM "customers" WHERE last_name = \$1 ORDER BY first_name ASC`).
		WithArgs("Bauer").
		WillReturnRows(customerRows(1, 2, 3))
	mock.ExpectQuery(`SELECT .* FROM "addresses" WHERE .*customer_id.*`).
		WillReturnRows(emptyAddressRows())

	customers, err := repo.FindByLastNameOrderByFirstNameAsc("Bauer")
	assert.NoError(err)
	assert.Len(customers, 3)
	assert.NoError(mock.ExpectationsWereMet())
}

func Test_FindByAddressCity_Joins_Addresses(t *testing.T) {
	assert := require.New(t)
	repo, mock := newMockRepository(t)

	mock.ExpectQuery(`SELECT DISTINCT .* FROM "customers" JOIN addresses ON addresses\.customer_id = customers\.id WHERE addresses\.city = \$1`).
		WithArgs("Springfield").
		WillReturnRows(customerRows(5))
	mock.ExpectQuery(`SELECT .* FROM "addresses" WHERE .*customer_id.*`).
		WillReturnRows(emptyAddressRows())

	customers, err := repo.FindByAddressCity("Springfield")
	assert.NoError(err)
	assert.Len(customers, 1)
	assert.NoError(mock.ExpectationsWereMet())
}

func Test_CountByAddressCity_Counts_Distinct_Customers(t *testing.T) {
	assert := require.New(t)
	repo, mock := newMockRepository(t)

	mock.ExpectQuery(`SELECT COUNT\(DISTINCT\(.*\)\) FROM "customers" JOIN addresses ON addresses\.customer_id = customers\.id WHERE addresses\.city = \$1`).
		WithArgs("Springfield").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))

	count, err := repo.CountByAddressCity("Springfield")
	assert.NoError(err)
	assert.Equal(int64(4), count)
	assert.NoError(mock.ExpectationsWereMet())
}

func Test_FindByLastName_Empty_Result_Is_Not_An_Error(t *testing.T) {
	assert := require.New(t)
	repo, mock := newMockRepository(t)

	mock.ExpectQuery(`SELECT .* FROM "customers" WHERE last_name = \$1`).
		WithArgs("Nobody").
		WillReturnRows(customerRows())

	customers, err := repo.FindByLastName("Nobody")
	assert.NoError(err)
	assert.Empty(customers)
	assert.NoError(mock.ExpectationsWereMet())
}
