package migrate

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// sqliteSchema mirrors the goose migrations for the sqlite driver used in local
// runs and package tests. Decimals are stored as text to keep exact values.
var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id text PRIMARY KEY,
		name text NOT NULL,
		email text NOT NULL UNIQUE,
		password_hash text NOT NULL,
		role text NOT NULL DEFAULT 'buyer',
		payment_address text,
		profile_image_path text,
		is_active boolean NOT NULL DEFAULT true,
		last_login_at datetime,
		created_at datetime,
		updated_at datetime
	)`,
	`CREATE TABLE IF NOT EXISTS products (
		id text PRIMARY KEY,
		vendor_email text NOT NULL,
		name text NOT NULL,
		description text NOT NULL DEFAULT '',
		main_image text NOT NULL DEFAULT '',
		other_images text,
		price text NOT NULL,
		created_at datetime,
		updated_at datetime
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		order_id text PRIMARY KEY,
		customer_email text NOT NULL,
		customer_payment_address text NOT NULL DEFAULT '',
		total_value text NOT NULL,
		shipping_fee text NOT NULL,
		total_paid text NOT NULL,
		settlement_currency text NOT NULL,
		exchange_rate text NOT NULL,
		overall_status text NOT NULL,
		shipping_method text NOT NULL,
		shipping_address text,
		created_at datetime,
		updated_at datetime
	)`,
	`CREATE TABLE IF NOT EXISTS order_items (
		id text PRIMARY KEY,
		order_id text NOT NULL,
		product_id text NOT NULL,
		position integer NOT NULL,
		name text NOT NULL,
		price text NOT NULL,
		quantity integer NOT NULL,
		image text NOT NULL DEFAULT '',
		vendor_email text NOT NULL,
		status text NOT NULL DEFAULT 'Pending',
		updated_at datetime
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS order_items_order_product_key ON order_items (order_id, product_id)`,
	`CREATE TABLE IF NOT EXISTS payment_attempts (
		id text PRIMARY KEY,
		order_id text NOT NULL,
		position integer NOT NULL,
		vendor_address text NOT NULL,
		vendor_email text NOT NULL,
		amount text NOT NULL,
		items text,
		transaction_ref text,
		block_ref text,
		success boolean NOT NULL,
		confirmed boolean NOT NULL DEFAULT false,
		confirmed_at datetime,
		error_kind text,
		error_reason text,
		created_at datetime
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS payment_attempts_order_position_key ON payment_attempts (order_id, position)`,
	`CREATE TABLE IF NOT EXISTS outbox_events (
		id text PRIMARY KEY,
		event_type text NOT NULL,
		aggregate_type text NOT NULL,
		aggregate_key text NOT NULL,
		payload text NOT NULL,
		created_at datetime,
		published_at datetime,
		attempt_count integer NOT NULL DEFAULT 0,
		last_error text
	)`,
	`CREATE TABLE IF NOT EXISTS outbox_dlq (
		id text PRIMARY KEY,
		event_id text NOT NULL UNIQUE,
		event_type text NOT NULL,
		aggregate_type text NOT NULL,
		aggregate_key text NOT NULL,
		payload_json text NOT NULL,
		error_reason text NOT NULL,
		error_message text,
		attempt_count integer NOT NULL DEFAULT 0,
		failed_at datetime,
		created_at datetime
	)`,
	`CREATE TABLE IF NOT EXISTS notifications (
		id text PRIMARY KEY,
		recipient_email text NOT NULL,
		type text NOT NULL,
		title text NOT NULL,
		message text NOT NULL,
		link text,
		order_id text,
		read_at datetime,
		created_at datetime
	)`,
}

// ApplySQLiteSchema creates every table on a sqlite connection.
func ApplySQLiteSchema(ctx context.Context, conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db is required")
	}
	for _, stmt := range sqliteSchema {
		if err := conn.WithContext(ctx).Exec(stmt).Error; err != nil {
			return fmt.Errorf("apply sqlite schema: %w", err)
		}
	}
	return nil
}
