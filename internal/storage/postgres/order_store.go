package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/vladislavdragonenkov/flashcart/internal/domain"
)

// maxOrderIDAttempts ограничивает повторную генерацию идентификатора при unique violation.
const maxOrderIDAttempts = 3

const orderColumns = `
	id, user_id, customer_email, customer_name, status,
	subtotal, shipping, tax, total,
	shipping_name, shipping_address, shipping_city, shipping_state, shipping_zip, shipping_country,
	payment_method, created_at, updated_at`

type orderStore struct {
	scope *scope
}

// Create пишет заказ, позиции и первую запись истории в одной транзакции.
// Вставка заказа идёт под SAVEPOINT, чтобы коллизия идентификатора не обрывала внешнюю транзакцию.
func (r *orderStore) Create(ctx context.Context, draft domain.OrderDraft) (domain.Order, error) {
	var order domain.Order
	err := r.scope.atomic(ctx, func(q dbtx) error {
		now := r.scope.store.now()

		var inserted bool
		for attempt := 0; attempt < maxOrderIDAttempts && !inserted; attempt++ {
			id, err := r.scope.store.newOrderID(now)
			if err != nil {
				return fmt.Errorf("generate order id: %w", err)
			}
			order = domain.NewOrder(id, draft, now)
			if errs := order.ValidateInvariants(); len(errs) > 0 {
				return fmt.Errorf("order invariants: %w", errs[0])
			}

			inserted, err = insertOrderRow(ctx, q, order)
			if err != nil {
				return err
			}
		}
		if !inserted {
			return domain.ErrOrderIDConflict
		}

		for _, item := range order.Items {
			if _, err := q.ExecContext(ctx, `
				INSERT INTO order_items (order_id, product_id, product_name, image_url, quantity, price, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
			`, order.ID, item.ProductID, item.Name, item.ImageURL, item.Quantity, item.UnitPrice, now); err != nil {
				if isForeignKeyViolation(err) {
					return fmt.Errorf("%w: %s", domain.ErrProductNotFound, item.ProductID)
				}
				return fmt.Errorf("insert order item: %w", err)
			}
		}

		if _, err := q.ExecContext(ctx, `
			INSERT INTO order_status_logs (order_id, status, note, created_at)
			VALUES ($1, $2, $3, $4)
		`, order.ID, string(domain.OrderStatusPending), domain.InitialStatusNote, now); err != nil {
			return fmt.Errorf("insert initial status log: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

func insertOrderRow(ctx context.Context, q dbtx, o domain.Order) (bool, error) {
	if _, err := q.ExecContext(ctx, `SAVEPOINT order_insert`); err != nil {
		return false, fmt.Errorf("savepoint order insert: %w", err)
	}

	addr := o.ShippingAddress
	_, err := q.ExecContext(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`,
		o.ID, o.UserID, o.CustomerEmail, o.CustomerName, string(o.Status),
		o.Totals.Subtotal, o.Totals.Shipping, o.Totals.Tax, o.Totals.Total,
		addr.FullName, addr.Address, addr.City, addr.State, addr.ZipCode, addr.Country,
		o.PaymentMethod, o.CreatedAt, o.UpdatedAt,
	)
	if err == nil {
		_, err = q.ExecContext(ctx, `RELEASE SAVEPOINT order_insert`)
		return err == nil, err
	}
	if !isUniqueViolation(err) {
		return false, fmt.Errorf("insert order: %w", err)
	}
	if _, rbErr := q.ExecContext(ctx, `ROLLBACK TO SAVEPOINT order_insert`); rbErr != nil {
		return false, fmt.Errorf("rollback to savepoint: %w", rbErr)
	}
	return false, nil
}

// AppendStatus блокирует строку заказа (FOR UPDATE), проверяет переход и пишет историю.
func (r *orderStore) AppendStatus(ctx context.Context, orderID string, status domain.OrderStatus, note string, guard domain.TransitionGuard) (domain.StatusChange, error) {
	var change domain.StatusChange
	err := r.scope.atomic(ctx, func(q dbtx) error {
		var (
			previousRaw string
			lastLogAt   sql.NullTime
		)
		err := q.QueryRowContext(ctx, `
			SELECT o.status,
			       (SELECT MAX(l.created_at) FROM order_status_logs l WHERE l.order_id = o.id)
			FROM orders o
			WHERE o.id = $1
			FOR UPDATE OF o
		`, orderID).Scan(&previousRaw, &lastLogAt)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s", domain.ErrOrderNotFound, orderID)
		}
		if err != nil {
			return fmt.Errorf("lock order %s: %w", orderID, err)
		}

		previous := domain.OrderStatus(previousRaw)
		if guard != nil {
			if err := guard(previous, status); err != nil {
				return err
			}
		}
		if strings.TrimSpace(note) == "" {
			note = domain.DefaultStatusNote(previous, status)
		}

		now := r.scope.store.now()
		if lastLogAt.Valid && now.Before(lastLogAt.Time) {
			now = lastLogAt.Time.UTC()
		}

		if _, err := q.ExecContext(ctx, `
			UPDATE orders SET status = $2, updated_at = $3 WHERE id = $1
		`, orderID, string(status), now); err != nil {
			return fmt.Errorf("update order status: %w", err)
		}
		if _, err := q.ExecContext(ctx, `
			INSERT INTO order_status_logs (order_id, status, note, created_at)
			VALUES ($1, $2, $3, $4)
		`, orderID, string(status), note, now); err != nil {
			return fmt.Errorf("insert status log: %w", err)
		}

		order, err := getOrder(ctx, q, orderID)
		if err != nil {
			return err
		}
		change = domain.StatusChange{
			Order:    order,
			Previous: previous,
			Entry:    domain.StatusLogEntry{OrderID: orderID, Status: status, Note: note, CreatedAt: now},
		}
		return nil
	})
	if err != nil {
		return domain.StatusChange{}, err
	}
	return change, nil
}

func (r *orderStore) Get(ctx context.Context, orderID string) (domain.Order, error) {
	return getOrder(ctx, r.scope.q, orderID)
}

func (r *orderStore) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	rows, err := r.scope.q.QueryContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := make([]domain.Order, 0)
	index := make(map[string]int)
	ids := make([]string, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		index[o.ID] = len(orders)
		ids = append(ids, o.ID)
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}
	if len(orders) == 0 {
		return orders, nil
	}

	items, err := loadItems(ctx, r.scope.q, `WHERE order_id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	for orderID, list := range items {
		orders[index[orderID]].Items = list
	}
	return orders, nil
}

func (r *orderStore) History(ctx context.Context, orderID string) ([]domain.StatusLogEntry, error) {
	var exists bool
	if err := r.scope.q.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, orderID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check order %s: %w", orderID, err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", domain.ErrOrderNotFound, orderID)
	}

	rows, err := r.scope.q.QueryContext(ctx, `
		SELECT order_id, status, note, created_at
		FROM order_status_logs
		WHERE order_id = $1
		ORDER BY created_at ASC, id ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("query status history: %w", err)
	}
	defer rows.Close()

	history := make([]domain.StatusLogEntry, 0)
	for rows.Next() {
		var (
			entry     domain.StatusLogEntry
			statusRaw string
		)
		if err := rows.Scan(&entry.OrderID, &statusRaw, &entry.Note, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan status log: %w", err)
		}
		entry.Status = domain.OrderStatus(statusRaw)
		entry.CreatedAt = entry.CreatedAt.UTC()
		history = append(history, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate status history: %w", err)
	}
	return history, nil
}

func getOrder(ctx context.Context, q dbtx, orderID string) (domain.Order, error) {
	row := q.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, orderID)
	order, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Order{}, fmt.Errorf("%w: %s", domain.ErrOrderNotFound, orderID)
	}
	if err != nil {
		return domain.Order{}, fmt.Errorf("get order %s: %w", orderID, err)
	}

	items, err := loadItems(ctx, q, `WHERE order_id = $1`, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	order.Items = items[orderID]
	return order, nil
}

func scanOrder(row rowScanner) (domain.Order, error) {
	var (
		o         domain.Order
		statusRaw string
		addr      domain.ShippingAddress
	)
	err := row.Scan(
		&o.ID, &o.UserID, &o.CustomerEmail, &o.CustomerName, &statusRaw,
		&o.Totals.Subtotal, &o.Totals.Shipping, &o.Totals.Tax, &o.Totals.Total,
		&addr.FullName, &addr.Address, &addr.City, &addr.State, &addr.ZipCode, &addr.Country,
		&o.PaymentMethod, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return domain.Order{}, err
	}
	o.Status = domain.OrderStatus(statusRaw)
	o.ShippingAddress = addr
	o.CreatedAt = o.CreatedAt.UTC()
	o.UpdatedAt = o.UpdatedAt.UTC()
	return o, nil
}

func loadItems(ctx context.Context, q dbtx, where string, arg any) (map[string][]domain.OrderItem, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT order_id, product_id, product_name, image_url, quantity, price
		FROM order_items
		`+where+`
		ORDER BY order_id, id
	`, arg)
	if err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	items := make(map[string][]domain.OrderItem)
	for rows.Next() {
		var (
			orderID string
			item    domain.OrderItem
		)
		if err := rows.Scan(&orderID, &item.ProductID, &item.Name, &item.ImageURL, &item.Quantity, &item.UnitPrice); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items[orderID] = append(items[orderID], item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order items: %w", err)
	}
	return items, nil
}

var _ domain.OrderStore = (*orderStore)(nil)
