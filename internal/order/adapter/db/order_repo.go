package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/FedePlevak/Fila0/internal/order/app/core"
	"github.com/FedePlevak/Fila0/internal/order/domain/models"
	"github.com/FedePlevak/Fila0/internal/xpkg/logger"
)

// terminalStatuses is inlined into queries that must see only the
// vendor's active work.
const terminalStatuses = `('delivered', 'expired_not_picked_up', 'cancelled_unpaid')`

const orderColumns = `
	order_id,
	vendor_relation_id,
	vendor_name,
	pickup_code,
	status,
	payment_method,
	payment_ref,
	total,
	created_at,
	updated_at,
	paid_at,
	ready_at,
	delivered_at`

type OrderRepo struct {
	db    core.IDB
	mylog logger.Logger
}

func NewOrderRepo(db core.IDB, mylog logger.Logger) *OrderRepo {
	return &OrderRepo{
		db:    db,
		mylog: mylog,
	}
}

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// createAttempts bounds retries when concurrent creates for one vendor
// race to the same pickup code.
const createAttempts = 3

// Create commits the order, its line items, the pickup code and the
// first status-log row as a single transaction. No reader ever sees an
// order without its items. Two concurrent creates can pass the in-tx
// collision check with the same code; the unique partial index rejects
// the loser at commit and the creation retries with a fresh code.
func (or *OrderRepo) Create(ctx context.Context, order models.Order, genCode core.PickupCodeFunc) (models.Order, error) {
	if err := or.db.IsAlive(); err != nil {
		return models.Order{}, core.ErrDBConn
	}

	for attempt := 0; attempt < createAttempts; attempt++ {
		created, err := or.createOnce(ctx, order, genCode)
		if err == nil {
			return created, nil
		}
		if !isPickupCodeClash(err) {
			return models.Order{}, err
		}
		or.mylog.Action("pickup_code_clash").
			Debug("Concurrent create took the pickup code, retrying", "order_id", order.OrderID)
	}
	return models.Order{}, core.ErrPickupCodeExhausted
}

func (or *OrderRepo) createOnce(ctx context.Context, order models.Order, genCode core.PickupCodeFunc) (models.Order, error) {
	tx, err := or.db.GetPool().Begin(ctx)
	if err != nil {
		return models.Order{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Collision scope is the vendor's non-terminal orders only; codes
	// are reused over time once orders close.
	q := `
	SELECT pickup_code FROM orders
	WHERE vendor_relation_id = $1 AND status NOT IN ` + terminalStatuses
	rows, err := tx.Query(ctx, q, order.VendorRelationID)
	if err != nil {
		return models.Order{}, fmt.Errorf("failed to load active pickup codes: %w", err)
	}
	active := map[string]struct{}{}
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			rows.Close()
			return models.Order{}, err
		}
		active[code] = struct{}{}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return models.Order{}, err
	}

	code, err := genCode(func(c string) bool {
		_, taken := active[c]
		return taken
	})
	if err != nil {
		return models.Order{}, err
	}
	order.PickupCode = code

	err = tx.QueryRow(ctx, `
		INSERT INTO orders (
			order_id,
			vendor_relation_id,
			vendor_name,
			pickup_code,
			status,
			payment_method,
			payment_ref,
			total
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`,
		order.OrderID,
		order.VendorRelationID,
		order.VendorName,
		order.PickupCode,
		string(order.Status),
		string(order.PaymentMethod),
		order.PaymentRef,
		order.Total,
	).Scan(&order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return models.Order{}, fmt.Errorf("failed to insert order: %w", err)
	}

	for _, item := range order.Snapshot.Items {
		removed, err := json.Marshal(item.RemovedIngredients)
		if err != nil {
			return models.Order{}, err
		}
		modifiers, err := json.Marshal(item.SelectedModifiers)
		if err != nil {
			return models.Order{}, err
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO order_items (
				order_id,
				product_id,
				name,
				unit_price,
				quantity,
				removed_ingredients,
				selected_modifiers,
				subtotal,
				image_url
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`,
			order.OrderID,
			item.ProductID,
			item.Name,
			item.UnitPrice,
			item.Quantity,
			removed,
			modifiers,
			item.Subtotal,
			item.ImageURL,
		)
		if err != nil {
			return models.Order{}, fmt.Errorf("failed to insert item: %w", err)
		}
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO order_status_log (order_id, status, changed_by, note)
		VALUES ($1, $2, $3, $4)
	`, order.OrderID, string(order.Status), "checkout", "")
	if err != nil {
		return models.Order{}, fmt.Errorf("failed to insert order status log: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return models.Order{}, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return order, nil
}

const uniqueViolation = "23505"

// isPickupCodeClash matches a unique violation on the partial index
// over the vendor's active pickup codes.
func isPickupCodeClash(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) &&
		pgErr.Code == uniqueViolation &&
		pgErr.ConstraintName == "idx_orders_active_pickup_code"
}

func (or *OrderRepo) Get(ctx context.Context, orderID string) (models.Order, error) {
	if err := or.db.IsAlive(); err != nil {
		return models.Order{}, core.ErrDBConn
	}
	return fetchOrder(ctx, or.db.GetPool(), orderID)
}

// Transition applies expected -> target with a compare-and-swap on the
// stored status, stamping the status timestamp in the same statement.
// Zero rows affected means another writer got there first.
func (or *OrderRepo) Transition(ctx context.Context, orderID string, expected, target models.Status, changedBy, paymentRef string) (models.Order, error) {
	if err := or.db.IsAlive(); err != nil {
		return models.Order{}, core.ErrDBConn
	}

	tx, err := or.db.GetPool().Begin(ctx)
	if err != nil {
		return models.Order{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	set := `status = $1, updated_at = now()`
	if stamp := models.StampColumn(target); stamp != "" {
		// stamp comes from a fixed map keyed by status, never from input.
		set += `, ` + stamp + ` = now()`
	}
	args := []any{string(target), orderID, string(expected)}
	if paymentRef != "" {
		set += `, payment_ref = $4`
		args = append(args, paymentRef)
	}

	q := fmt.Sprintf(`UPDATE orders SET %s WHERE order_id = $2 AND status = $3`, set)
	cmdTag, err := tx.Exec(ctx, q, args...)
	if err != nil {
		return models.Order{}, fmt.Errorf("failed to update order status: %w", err)
	}

	if cmdTag.RowsAffected() == 0 {
		var current string
		err := tx.QueryRow(ctx, `SELECT status FROM orders WHERE order_id = $1`, orderID).Scan(&current)
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Order{}, core.ErrOrderNotFound
		}
		if err != nil {
			return models.Order{}, err
		}
		or.mylog.Action("transition_conflict").
			Debug("CAS lost", "order_id", orderID, "expected", string(expected), "stored", current)
		return models.Order{}, core.ErrConflict
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO order_status_log (order_id, status, changed_by, note)
		VALUES ($1, $2, $3, $4)
	`, orderID, string(target), changedBy, "")
	if err != nil {
		return models.Order{}, fmt.Errorf("failed to insert order status log: %w", err)
	}

	order, err := fetchOrder(ctx, tx, orderID)
	if err != nil {
		return models.Order{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return models.Order{}, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return order, nil
}

func (or *OrderRepo) History(ctx context.Context, orderID string) ([]models.StatusLogEntry, error) {
	if err := or.db.IsAlive(); err != nil {
		return nil, core.ErrDBConn
	}

	q := `
	SELECT status, changed_by, changed_at, note
	FROM order_status_log
	WHERE order_id = $1
	ORDER BY changed_at
	`
	rows, err := or.db.GetPool().Query(ctx, q, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []models.StatusLogEntry
	for rows.Next() {
		var entry models.StatusLogEntry
		var status string
		if err := rows.Scan(&status, &entry.ChangedBy, &entry.ChangedAt, &entry.Note); err != nil {
			return nil, err
		}
		entry.Status = models.Status(status)
		history = append(history, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return nil, core.ErrOrderNotFound
	}
	return history, nil
}

// ListActive returns the vendor's non-terminal orders, items included.
func (or *OrderRepo) ListActive(ctx context.Context, vendorRelationID string) ([]models.Order, error) {
	if err := or.db.IsAlive(); err != nil {
		return nil, core.ErrDBConn
	}

	q := `
	SELECT ` + orderColumns + `
	FROM orders
	WHERE vendor_relation_id = $1 AND status NOT IN ` + terminalStatuses + `
	ORDER BY created_at
	`
	return or.queryOrders(ctx, q, vendorRelationID)
}

// ListReadyBefore returns ready orders stamped before the cutoff,
// candidates for expiry.
func (or *OrderRepo) ListReadyBefore(ctx context.Context, cutoff time.Time) ([]models.Order, error) {
	if err := or.db.IsAlive(); err != nil {
		return nil, core.ErrDBConn
	}

	q := `
	SELECT ` + orderColumns + `
	FROM orders
	WHERE status = 'ready' AND ready_at < $1
	ORDER BY ready_at
	`
	return or.queryOrders(ctx, q, cutoff)
}

// ListUnpaidBefore returns online orders whose payment never confirmed
// within the window.
func (or *OrderRepo) ListUnpaidBefore(ctx context.Context, cutoff time.Time) ([]models.Order, error) {
	if err := or.db.IsAlive(); err != nil {
		return nil, core.ErrDBConn
	}

	q := `
	SELECT ` + orderColumns + `
	FROM orders
	WHERE status = 'created' AND payment_method = 'online' AND created_at < $1
	ORDER BY created_at
	`
	return or.queryOrders(ctx, q, cutoff)
}

func (or *OrderRepo) queryOrders(ctx context.Context, q string, args ...any) ([]models.Order, error) {
	rows, err := or.db.GetPool().Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range orders {
		items, err := fetchItems(ctx, or.db.GetPool(), orders[i].OrderID)
		if err != nil {
			return nil, err
		}
		orders[i].Snapshot = models.Snapshot{Items: items, Total: orders[i].Total}
	}
	return orders, nil
}

func fetchOrder(ctx context.Context, q querier, orderID string) (models.Order, error) {
	row := q.QueryRow(ctx, `
	SELECT `+orderColumns+`
	FROM orders
	WHERE order_id = $1
	`, orderID)

	order, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Order{}, core.ErrOrderNotFound
	}
	if err != nil {
		return models.Order{}, err
	}

	items, err := fetchItems(ctx, q, orderID)
	if err != nil {
		return models.Order{}, err
	}
	order.Snapshot = models.Snapshot{Items: items, Total: order.Total}
	return order, nil
}

func fetchItems(ctx context.Context, q querier, orderID string) ([]models.LineItem, error) {
	rows, err := q.Query(ctx, `
	SELECT
		product_id,
		name,
		unit_price,
		quantity,
		removed_ingredients,
		selected_modifiers,
		subtotal,
		image_url
	FROM order_items
	WHERE order_id = $1
	ORDER BY item_id
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.LineItem
	for rows.Next() {
		var item models.LineItem
		var removed, modifiers []byte
		if err := rows.Scan(
			&item.ProductID,
			&item.Name,
			&item.UnitPrice,
			&item.Quantity,
			&removed,
			&modifiers,
			&item.Subtotal,
			&item.ImageURL,
		); err != nil {
			return nil, err
		}
		if len(removed) > 0 {
			if err := json.Unmarshal(removed, &item.RemovedIngredients); err != nil {
				return nil, err
			}
		}
		if len(modifiers) > 0 {
			if err := json.Unmarshal(modifiers, &item.SelectedModifiers); err != nil {
				return nil, err
			}
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

type scannable interface {
	Scan(dest ...any) error
}

func scanOrder(row scannable) (models.Order, error) {
	var order models.Order
	var status, method string
	err := row.Scan(
		&order.OrderID,
		&order.VendorRelationID,
		&order.VendorName,
		&order.PickupCode,
		&status,
		&method,
		&order.PaymentRef,
		&order.Total,
		&order.CreatedAt,
		&order.UpdatedAt,
		&order.PaidAt,
		&order.ReadyAt,
		&order.DeliveredAt,
	)
	if err != nil {
		return models.Order{}, err
	}
	order.Status = models.Status(status)
	order.PaymentMethod = models.PaymentMethod(method)
	return order, nil
}
