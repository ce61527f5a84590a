package loader

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edvin/warehouse/internal/model"
)

const (
	testRoleARN = "arn:aws:iam::123456789012:role/redshift-copy"

	countQuery      = "SELECT COUNT(*) FROM sales"
	salesQuery      = "SELECT order_id, product_id, quantity, price FROM sales ORDER BY order_id"
	loadErrorsQuery = "SELECT DISTINCT le.starttime, TRIM(le.filename), le.line_number, TRIM(le.colname), " +
		"TRIM(le.type), TRIM(le.raw_field_value), le.err_code, TRIM(le.err_reason) " +
		"FROM stl_load_errors le JOIN stv_tbl_perm tp ON le.tbl = tp.id " +
		"WHERE TRIM(tp.name) = $1 ORDER BY le.starttime DESC"
)

var loadErrorColumnNames = []string{
	"starttime", "filename", "line_number", "colname", "type", "raw_field_value", "err_code", "err_reason",
}

func newMockWarehouse(t *testing.T) (*Warehouse, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewWarehouse(db, zerolog.Nop()), mock
}

func expectRecreate(mock sqlmock.Sqlmock) {
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DROP TABLE IF EXISTS sales")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE sales (")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()
}

func salesRows(sales ...model.Sale) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"order_id", "product_id", "quantity", "price"})
	for _, s := range sales {
		rows.AddRow(s.OrderID, s.ProductID, s.Quantity, s.Price)
	}
	return rows
}

func testArtifact() model.LoadArtifact {
	return model.LoadArtifact{LocalPath: "testdata/sales.csv", Bucket: "my-bucket", Key: "sales.csv"}
}

func TestRecreateTable_LeavesTableEmpty(t *testing.T) {
	wh, mock := newMockWarehouse(t)
	ctx := context.Background()

	expectRecreate(mock)
	mock.ExpectQuery(regexp.QuoteMeta(countQuery)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	require.NoError(t, wh.RecreateTable(ctx))
	count, err := wh.CountRows(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecreateTable_CreateFailsRollsBack(t *testing.T) {
	wh, mock := newMockWarehouse(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DROP TABLE IF EXISTS sales")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE sales (")).WillReturnError(errors.New("permission denied"))
	mock.ExpectRollback()

	err := wh.RecreateTable(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create sales table")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyStatement(t *testing.T) {
	tests := []struct {
		name string
		opts CopyOptions
		want string
	}{
		{
			name: "role only",
			opts: CopyOptions{Artifact: testArtifact(), IAMRoleARN: testRoleARN},
			want: "COPY sales FROM 's3://my-bucket/sales.csv' IAM_ROLE '" + testRoleARN + "' FORMAT AS CSV",
		},
		{
			name: "header region and max errors",
			opts: CopyOptions{Artifact: testArtifact(), IAMRoleARN: testRoleARN, Region: "us-east-1", IgnoreHeader: 1, MaxErrors: 10},
			want: "COPY sales FROM 's3://my-bucket/sales.csv' IAM_ROLE '" + testRoleARN +
				"' FORMAT AS CSV IGNOREHEADER 1 MAXERROR 10 REGION 'us-east-1'",
		},
		{
			name: "quotes escaped",
			opts: CopyOptions{
				Artifact:   model.LoadArtifact{Bucket: "my-bucket", Key: "it's.csv"},
				IAMRoleARN: testRoleARN,
			},
			want: "COPY sales FROM 's3://my-bucket/it''s.csv' IAM_ROLE '" + testRoleARN + "' FORMAT AS CSV",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CopyStatement(tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCopyStatement_NeverEmbedsKeys(t *testing.T) {
	stmt, err := CopyStatement(CopyOptions{Artifact: testArtifact(), IAMRoleARN: testRoleARN})
	require.NoError(t, err)
	assert.NotContains(t, stmt, "ACCESS_KEY_ID")
	assert.NotContains(t, stmt, "SECRET_ACCESS_KEY")
	assert.NotContains(t, stmt, "CREDENTIALS")
}

func TestCopyStatement_Invalid(t *testing.T) {
	tests := []struct {
		name string
		opts CopyOptions
	}{
		{"missing bucket", CopyOptions{Artifact: model.LoadArtifact{Key: "k"}, IAMRoleARN: testRoleARN}},
		{"missing key", CopyOptions{Artifact: model.LoadArtifact{Bucket: "b"}, IAMRoleARN: testRoleARN}},
		{"missing role", CopyOptions{Artifact: testArtifact()}},
		{"negative header", CopyOptions{Artifact: testArtifact(), IAMRoleARN: testRoleARN, IgnoreHeader: -1}},
		{"negative max errors", CopyOptions{Artifact: testArtifact(), IAMRoleARN: testRoleARN, MaxErrors: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CopyStatement(tt.opts)
			require.Error(t, err)
		})
	}
}

func TestCopy_ThreeRowArtifactCountsThree(t *testing.T) {
	wh, mock := newMockWarehouse(t)
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta("COPY sales FROM 's3://my-bucket/sales.csv' IAM_ROLE")).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectQuery(regexp.QuoteMeta(countQuery)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	require.NoError(t, wh.Copy(ctx, CopyOptions{Artifact: testArtifact(), IAMRoleARN: testRoleARN}))
	count, err := wh.CountRows(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCopy_Error(t *testing.T) {
	wh, mock := newMockWarehouse(t)

	mock.ExpectExec(regexp.QuoteMeta("COPY sales FROM")).
		WillReturnError(errors.New("Load into table 'sales' failed. Check 'stl_load_errors' system table for details."))

	err := wh.Copy(context.Background(), CopyOptions{Artifact: testArtifact(), IAMRoleARN: testRoleARN})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "copy s3://my-bucket/sales.csv into sales")
}

func TestListSales(t *testing.T) {
	wh, mock := newMockWarehouse(t)

	mock.ExpectQuery(regexp.QuoteMeta(salesQuery)).WillReturnRows(salesRows(
		model.Sale{OrderID: 1, ProductID: 100, Quantity: 2, Price: "9.99"},
		model.Sale{OrderID: 2, ProductID: 101, Quantity: 1, Price: "19.99"},
	))

	sales, err := wh.ListSales(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []model.Sale{
		{OrderID: 1, ProductID: 100, Quantity: 2, Price: "9.99"},
		{OrderID: 2, ProductID: 101, Quantity: 1, Price: "19.99"},
	}, sales)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListSales_QueryError(t *testing.T) {
	wh, mock := newMockWarehouse(t)
	mock.ExpectQuery(regexp.QuoteMeta(salesQuery)).WillReturnError(errors.New("relation does not exist"))

	_, err := wh.ListSales(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "querying sales")
}

func TestListLoadErrors_EmptyOnSuccess(t *testing.T) {
	wh, mock := newMockWarehouse(t)
	mock.ExpectQuery(regexp.QuoteMeta(loadErrorsQuery)).
		WithArgs("sales").
		WillReturnRows(sqlmock.NewRows(loadErrorColumnNames))

	loadErrors, err := wh.ListLoadErrors(context.Background())
	require.NoError(t, err)
	assert.Empty(t, loadErrors)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListLoadErrors_MalformedQuantity(t *testing.T) {
	wh, mock := newMockWarehouse(t)
	started := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta(loadErrorsQuery)).
		WithArgs("sales").
		WillReturnRows(sqlmock.NewRows(loadErrorColumnNames).
			AddRow(started, "s3://my-bucket/sales.csv", 2, "quantity", "int4", "two", 1207,
				"Invalid digit, Value 't', Pos 0, Type: Integer"))

	loadErrors, err := wh.ListLoadErrors(context.Background())
	require.NoError(t, err)
	require.Len(t, loadErrors, 1)
	assert.Equal(t, model.LoadError{
		StartTime:     started,
		Filename:      "s3://my-bucket/sales.csv",
		LineNumber:    2,
		ColName:       "quantity",
		Type:          "int4",
		RawFieldValue: "two",
		ErrCode:       1207,
		ErrReason:     "Invalid digit, Value 't', Pos 0, Type: Integer",
	}, loadErrors[0])
}

func TestListLoadErrors_ScanError(t *testing.T) {
	wh, mock := newMockWarehouse(t)
	mock.ExpectQuery(regexp.QuoteMeta(loadErrorsQuery)).
		WillReturnRows(sqlmock.NewRows(loadErrorColumnNames).
			AddRow("not a time", "f", 1, "c", "t", "v", 1, "r"))

	_, err := wh.ListLoadErrors(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scanning load error")
}
