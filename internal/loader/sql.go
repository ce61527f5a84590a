// Package loader recreates the sales table and bulk-loads CSV artifacts into
// a Redshift cluster.
package loader

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/rs/zerolog"

	"github.com/edvin/warehouse/internal/model"
)

var psq = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

const (
	dropSalesTable   = `DROP TABLE IF EXISTS sales`
	createSalesTable = `CREATE TABLE sales (
	order_id   INTEGER,
	product_id INTEGER,
	quantity   INTEGER,
	price      NUMERIC(10,2)
)`
)

var salesColumns = []string{"order_id", "product_id", "quantity", "price"}

var loadErrorColumns = []string{
	"le.starttime",
	"TRIM(le.filename)",
	"le.line_number",
	"TRIM(le.colname)",
	"TRIM(le.type)",
	"TRIM(le.raw_field_value)",
	"le.err_code",
	"TRIM(le.err_reason)",
}

// CopyOptions describe one COPY of an S3 object into the sales table.
type CopyOptions struct {
	Artifact     model.LoadArtifact
	IAMRoleARN   string
	Region       string
	IgnoreHeader int
	MaxErrors    int
}

// Warehouse runs the load statements against one warehouse database.
type Warehouse struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewWarehouse creates a Warehouse over an open connection.
func NewWarehouse(db *sql.DB, logger zerolog.Logger) *Warehouse {
	return &Warehouse{
		db:     db,
		logger: logger.With().Str("component", "loader").Logger(),
	}
}

// RecreateTable drops and recreates the sales table in one transaction,
// leaving it empty.
func (w *Warehouse) RecreateTable(ctx context.Context) error {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin recreate sales: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, dropSalesTable); err != nil {
		return fmt.Errorf("drop sales table: %w", err)
	}
	if _, err := tx.ExecContext(ctx, createSalesTable); err != nil {
		return fmt.Errorf("create sales table: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit recreate sales: %w", err)
	}

	w.logger.Info().Str("table", model.SalesTable).Msg("sales table recreated")
	return nil
}

// CopyStatement renders the COPY command. Redshift does not accept bind
// parameters in COPY, so every value is quoted as a string literal.
func CopyStatement(opts CopyOptions) (string, error) {
	if opts.Artifact.Bucket == "" || opts.Artifact.Key == "" {
		return "", errors.New("copy: bucket and key are required")
	}
	if opts.IAMRoleARN == "" {
		return "", errors.New("copy: iam role arn is required")
	}
	if opts.IgnoreHeader < 0 {
		return "", fmt.Errorf("copy: invalid ignore header %d", opts.IgnoreHeader)
	}
	if opts.MaxErrors < 0 {
		return "", fmt.Errorf("copy: invalid max errors %d", opts.MaxErrors)
	}

	var b strings.Builder
	b.WriteString("COPY sales FROM ")
	b.WriteString(quoteLiteral(opts.Artifact.S3URI()))
	b.WriteString(" IAM_ROLE ")
	b.WriteString(quoteLiteral(opts.IAMRoleARN))
	b.WriteString(" FORMAT AS CSV")
	if opts.IgnoreHeader > 0 {
		b.WriteString(" IGNOREHEADER ")
		b.WriteString(strconv.Itoa(opts.IgnoreHeader))
	}
	if opts.MaxErrors > 0 {
		b.WriteString(" MAXERROR ")
		b.WriteString(strconv.Itoa(opts.MaxErrors))
	}
	if opts.Region != "" {
		b.WriteString(" REGION ")
		b.WriteString(quoteLiteral(opts.Region))
	}
	return b.String(), nil
}

// Copy bulk-loads the artifact from S3 into the sales table.
func (w *Warehouse) Copy(ctx context.Context, opts CopyOptions) error {
	stmt, err := CopyStatement(opts)
	if err != nil {
		return err
	}

	w.logger.Info().Str("source", opts.Artifact.S3URI()).Msg("copying artifact into sales")
	if _, err := w.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("copy %s into sales: %w", opts.Artifact.S3URI(), err)
	}
	return nil
}

// ListSales returns every row of the sales table ordered by order id.
func (w *Warehouse) ListSales(ctx context.Context) ([]model.Sale, error) {
	query, args, err := psq.Select(salesColumns...).From(model.SalesTable).OrderBy("order_id").ToSql()
	if err != nil {
		return nil, fmt.Errorf("building sales query: %w", err)
	}

	rows, err := w.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying sales: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var sales []model.Sale
	for rows.Next() {
		var s model.Sale
		if err := rows.Scan(&s.OrderID, &s.ProductID, &s.Quantity, &s.Price); err != nil {
			return nil, fmt.Errorf("scanning sale: %w", err)
		}
		sales = append(sales, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sales: %w", err)
	}
	return sales, nil
}

// CountRows returns the number of rows in the sales table.
func (w *Warehouse) CountRows(ctx context.Context) (int64, error) {
	query, args, err := psq.Select("COUNT(*)").From(model.SalesTable).ToSql()
	if err != nil {
		return 0, fmt.Errorf("building count query: %w", err)
	}

	var count int64
	if err := w.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting sales: %w", err)
	}
	return count, nil
}

// ListLoadErrors returns the stl_load_errors rows recorded against the
// current sales table, newest first. The table id changes on every
// recreate, so errors from earlier loads are not included.
func (w *Warehouse) ListLoadErrors(ctx context.Context) ([]model.LoadError, error) {
	// stv_tbl_perm has one row per slice.
	query, args, err := psq.Select(loadErrorColumns...).
		Distinct().
		From("stl_load_errors le").
		Join("stv_tbl_perm tp ON le.tbl = tp.id").
		Where(sq.Eq{"TRIM(tp.name)": model.SalesTable}).
		OrderBy("le.starttime DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building load errors query: %w", err)
	}

	rows, err := w.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying load errors: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var loadErrors []model.LoadError
	for rows.Next() {
		var le model.LoadError
		if err := rows.Scan(
			&le.StartTime,
			&le.Filename,
			&le.LineNumber,
			&le.ColName,
			&le.Type,
			&le.RawFieldValue,
			&le.ErrCode,
			&le.ErrReason,
		); err != nil {
			return nil, fmt.Errorf("scanning load error: %w", err)
		}
		loadErrors = append(loadErrors, le)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating load errors: %w", err)
	}
	return loadErrors, nil
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
