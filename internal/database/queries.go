package database

// Floor plan queries
const (
	GetTableSQL = `
		SELECT id, restaurant_id, hall_id, table_number, capacity, shape, status, updated_at
		FROM tables WHERE id = $1`

	ListTablesSQL = `
		SELECT id, restaurant_id, hall_id, table_number, capacity, shape, status, updated_at
		FROM tables
		WHERE ($1::text = '' OR hall_id = $1)
		ORDER BY table_number`

	SetTableStatusSQL = `
		UPDATE tables SET status = $2, updated_at = NOW()
		WHERE id = $1`

	GetHallSQL = `
		SELECT id, restaurant_id, COALESCE(branch_id, ''), name, service_charge::float8, is_active
		FROM halls WHERE id = $1`

	GetProductSQL = `
		SELECT id, restaurant_id, name, price::float8, department_id, is_active
		FROM products WHERE id = $1 AND is_active`
)

// Order queries
const (
	orderColumns = `
		id::text, restaurant_id, COALESCE(branch_id, ''), table_id, table_number, COALESCE(waiter_id, ''),
		items, subtotal::float8, discount::float8, discount_type, discount_value::float8, service_rate::float8,
		tax::float8, service_charge::float8, total_amount::float8, status, payment_status, payment_method,
		notes, started_at, sent_to_kitchen_at, completed_at, updated_at, version`

	ActiveOrderSQL = `
		SELECT` + orderColumns + `
		FROM orders
		WHERE table_id = $1 AND status IN ('pending', 'in_progress')
		FOR UPDATE`

	InsertOrderSQL = `
		INSERT INTO orders (
			restaurant_id, branch_id, table_id, table_number, waiter_id, items,
			subtotal, discount, discount_type, discount_value, service_rate, tax,
			service_charge, total_amount, status, payment_status, payment_method,
			notes, started_at, sent_to_kitchen_at, completed_at, version)
		VALUES ($1, NULLIF($2, ''), $3, $4, NULLIF($5, ''), $6,
			$7, $8, $9, $10, $11, $12,
			$13, $14, $15, $16, $17,
			$18, $19, $20, $21, 1)
		RETURNING id::text, updated_at`

	UpdateOrderSQL = `
		UPDATE orders SET
			items = $3, subtotal = $4, discount = $5, discount_type = $6, discount_value = $7,
			service_rate = $8, tax = $9, service_charge = $10, total_amount = $11,
			status = $12, payment_status = $13, payment_method = $14, notes = $15,
			sent_to_kitchen_at = $16, completed_at = $17, waiter_id = NULLIF($18, ''),
			version = version + 1, updated_at = NOW()
		WHERE id = $1 AND version = $2 AND status IN ('pending', 'in_progress')
		RETURNING version, updated_at`

	OrderExistsSQL = `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`
)

// Kitchen queries
const (
	InsertKitchenOrderSQL = `
		INSERT INTO kitchen_orders (order_id, department_id, items, status, table_number, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id::text`
)

// Settlement queries
const (
	RecentCompletedSQL = `
		SELECT id::text, order_id::text, restaurant_id, COALESCE(branch_id, ''), table_id, table_number,
			COALESCE(waiter_id, ''), items, subtotal::float8, discount::float8, discount_type, tax::float8,
			service_charge::float8, total_amount::float8, payment_method, payment_details,
			cashier_id, cashier_name, is_unpaid, unpaid_reason, notes, started_at, completed_at
		FROM completed_orders
		WHERE table_id = $1 AND table_number = $2 AND completed_at >= $3
		ORDER BY completed_at DESC
		LIMIT 1`

	InsertCompletedSQL = `
		INSERT INTO completed_orders (
			order_id, restaurant_id, branch_id, table_id, table_number, waiter_id, items,
			subtotal, discount, discount_type, tax, service_charge, total_amount,
			payment_method, payment_details, cashier_id, cashier_name, is_unpaid,
			unpaid_reason, notes, started_at, completed_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, NULLIF($6, ''), $7,
			$8, $9, $10, $11, $12, $13,
			$14, $15, $16, $17, $18,
			$19, $20, $21, $22)
		RETURNING id::text`
)

// Seed queries
const (
	UpsertHallSQL = `
		INSERT INTO halls (id, restaurant_id, branch_id, name, service_charge, is_active)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, service_charge = EXCLUDED.service_charge,
			is_active = EXCLUDED.is_active`

	UpsertTableSQL = `
		INSERT INTO tables (id, restaurant_id, hall_id, table_number, capacity, shape)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING`

	UpsertProductSQL = `
		INSERT INTO products (id, restaurant_id, name, price, department_id, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, price = EXCLUDED.price,
			department_id = EXCLUDED.department_id, is_active = EXCLUDED.is_active`
)
