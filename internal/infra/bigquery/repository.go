package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/google/uuid"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/dvloznov/payment-snap/internal/domain"
	"github.com/dvloznov/payment-snap/internal/store"
)

// Config locates the transactions table.
type Config struct {
	ProjectID string
	DatasetID string
	TableID   string
}

// TransactionRepository is the BigQuery implementation of
// store.TransactionRepository. It holds a shared BigQuery client to avoid
// creating a new connection for each operation.
type TransactionRepository struct {
	client *bigquery.Client
	cfg    Config
}

var _ store.TransactionRepository = (*TransactionRepository)(nil)

// NewTransactionRepository creates a repository with its own client.
func NewTransactionRepository(ctx context.Context, cfg Config, opts ...option.ClientOption) (*TransactionRepository, error) {
	client, err := bigquery.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("NewTransactionRepository: creating client: %w", err)
	}
	return &TransactionRepository{client: client, cfg: cfg}, nil
}

// Close closes the BigQuery client connection.
func (r *TransactionRepository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// tableRef is the fully qualified, backtick-quoted table name for SQL.
func (r *TransactionRepository) tableRef() string {
	return fmt.Sprintf("`%s.%s.%s`", r.cfg.ProjectID, r.cfg.DatasetID, r.cfg.TableID)
}

// EnsureTable creates the dataset and table if they do not exist.
func (r *TransactionRepository) EnsureTable(ctx context.Context) error {
	ds := r.client.DatasetInProject(r.cfg.ProjectID, r.cfg.DatasetID)
	if err := ds.Create(ctx, &bigquery.DatasetMetadata{}); err != nil && !isAlreadyExists(err) {
		return fmt.Errorf("EnsureTable: creating dataset: %w", err)
	}

	schema, err := TransactionSchema()
	if err != nil {
		return err
	}

	meta := &bigquery.TableMetadata{
		Schema: schema,
		TimePartitioning: &bigquery.TimePartitioning{
			Type:  bigquery.DayPartitioningType,
			Field: "created_ts",
		},
	}
	if err := ds.Table(r.cfg.TableID).Create(ctx, meta); err != nil && !isAlreadyExists(err) {
		return fmt.Errorf("EnsureTable: creating table: %w", err)
	}
	return nil
}

func isAlreadyExists(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusConflict
}

// CreateTransaction inserts tx with a DML statement so the row can be
// deleted right away (streamed rows cannot be modified while buffered).
func (r *TransactionRepository) CreateTransaction(ctx context.Context, tx *domain.Transaction) error {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	tx.CreatedAt = now
	tx.UpdatedAt = now

	row := toRow(tx)

	q := r.client.Query(fmt.Sprintf(`
		INSERT %s (
			transaction_id,
			note,
			amount,
			merchant,
			category,
			attachment_key,
			created_ts,
			updated_ts
		)
		VALUES (
			@transaction_id,
			@note,
			@amount,
			@merchant,
			@category,
			@attachment_key,
			@created_ts,
			@updated_ts
		)
	`, r.tableRef()))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "transaction_id", Value: row.TransactionID},
		{Name: "note", Value: row.Note},
		{Name: "amount", Value: row.Amount},
		{Name: "merchant", Value: row.Merchant},
		{Name: "category", Value: row.Category},
		{Name: "attachment_key", Value: row.AttachmentKey},
		{Name: "created_ts", Value: row.CreatedTS},
		{Name: "updated_ts", Value: row.UpdatedTS},
	}

	if _, err := runDML(ctx, q); err != nil {
		return fmt.Errorf("CreateTransaction: %w", err)
	}
	return nil
}

const selectColumns = `
	transaction_id,
	note,
	amount,
	merchant,
	category,
	attachment_key,
	created_ts,
	updated_ts`

// GetTransaction returns store.ErrNotFound when no row matches id.
func (r *TransactionRepository) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	q := r.client.Query(fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE transaction_id = @transaction_id
		LIMIT 1
	`, selectColumns, r.tableRef()))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "transaction_id", Value: id},
	}

	txs, err := r.readTransactions(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("GetTransaction: %w", err)
	}
	if len(txs) == 0 {
		return nil, store.ErrNotFound
	}
	return txs[0], nil
}

// ListTransactions returns transactions newest first.
func (r *TransactionRepository) ListTransactions(ctx context.Context, limit, offset int) ([]*domain.Transaction, error) {
	q := r.client.Query(fmt.Sprintf(`
		SELECT %s
		FROM %s
		ORDER BY created_ts DESC, transaction_id
		LIMIT @limit
		OFFSET @offset
	`, selectColumns, r.tableRef()))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "limit", Value: int64(limit)},
		{Name: "offset", Value: int64(offset)},
	}

	txs, err := r.readTransactions(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("ListTransactions: %w", err)
	}
	return txs, nil
}

// CountTransactions returns the number of stored transactions.
func (r *TransactionRepository) CountTransactions(ctx context.Context) (int, error) {
	q := r.client.Query(fmt.Sprintf(`SELECT COUNT(*) AS n FROM %s`, r.tableRef()))

	it, err := q.Read(ctx)
	if err != nil {
		return 0, fmt.Errorf("CountTransactions: query read: %w", err)
	}

	var row struct {
		N int64 `bigquery:"n"`
	}
	if err := it.Next(&row); err != nil {
		return 0, fmt.Errorf("CountTransactions: iter next: %w", err)
	}
	return int(row.N), nil
}

// DeleteTransaction returns store.ErrNotFound when no row matched id.
func (r *TransactionRepository) DeleteTransaction(ctx context.Context, id string) error {
	q := r.client.Query(fmt.Sprintf(`
		DELETE FROM %s
		WHERE transaction_id = @transaction_id
	`, r.tableRef()))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "transaction_id", Value: id},
	}

	status, err := runDML(ctx, q)
	if err != nil {
		return fmt.Errorf("DeleteTransaction: %w", err)
	}
	affected, err := affectedRows(status)
	if err != nil {
		return fmt.Errorf("DeleteTransaction: %w", err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *TransactionRepository) readTransactions(ctx context.Context, q *bigquery.Query) ([]*domain.Transaction, error) {
	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("query read: %w", err)
	}

	var txs []*domain.Transaction
	for {
		var row TransactionRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iter next: %w", err)
		}
		tx, err := fromRow(&row)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, nil
}

// errNoDMLStats means the finished job did not report how many rows it touched.
var errNoDMLStats = errors.New("job status carries no DML statistics")

// runDML runs a DML query to completion.
func runDML(ctx context.Context, q *bigquery.Query) (*bigquery.JobStatus, error) {
	job, err := q.Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("run query: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return nil, fmt.Errorf("wait for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return nil, fmt.Errorf("job error: %w", err)
	}
	return status, nil
}

// affectedRows reads the DML row count of a finished job. Missing statistics
// are an error rather than zero rows.
func affectedRows(status *bigquery.JobStatus) (int64, error) {
	if status == nil || status.Statistics == nil {
		return 0, errNoDMLStats
	}
	qs, ok := status.Statistics.Details.(*bigquery.QueryStatistics)
	if !ok || qs == nil {
		return 0, errNoDMLStats
	}
	return qs.NumDMLAffectedRows, nil
}
