package mysql

import (
	"context"

	"github.com/pkg/errors"
)

var schema = []string{
	"CREATE TABLE IF NOT EXISTS `conversation` (" +
		"`id` INT NOT NULL AUTO_INCREMENT PRIMARY KEY," +
		"`uid` VARCHAR(64) NOT NULL UNIQUE," +
		"`user_id` VARCHAR(256) NOT NULL DEFAULT ''," +
		"`title` VARCHAR(512) NOT NULL DEFAULT ''," +
		"`last_message_preview` VARCHAR(512) NOT NULL DEFAULT ''," +
		"`status` VARCHAR(32) NOT NULL DEFAULT 'IN_PROGRESS'," +
		"`created_ts` BIGINT NOT NULL," +
		"`updated_ts` BIGINT NOT NULL," +
		"INDEX `idx_conversation_user` (`user_id`))",
	"CREATE TABLE IF NOT EXISTS `conversation_message` (" +
		"`id` INT NOT NULL AUTO_INCREMENT PRIMARY KEY," +
		"`conversation_id` INT NOT NULL," +
		"`sender` VARCHAR(32) NOT NULL," +
		"`content` TEXT NOT NULL," +
		"`metadata` MEDIUMTEXT NOT NULL," +
		"`created_ts` BIGINT NOT NULL," +
		"INDEX `idx_conversation_message_conversation` (`conversation_id`)," +
		"CONSTRAINT `fk_conversation_message_conversation` FOREIGN KEY (`conversation_id`) REFERENCES `conversation`(`id`) ON DELETE CASCADE)",
	"CREATE TABLE IF NOT EXISTS `conversation_action` (" +
		"`id` INT NOT NULL AUTO_INCREMENT PRIMARY KEY," +
		"`conversation_id` INT NOT NULL," +
		"`action_type` VARCHAR(64) NOT NULL," +
		"`parameters` TEXT NOT NULL," +
		"`result` MEDIUMTEXT NOT NULL," +
		"`error` TEXT NOT NULL," +
		"`created_ts` BIGINT NOT NULL," +
		"INDEX `idx_conversation_action_conversation` (`conversation_id`)," +
		"CONSTRAINT `fk_conversation_action_conversation` FOREIGN KEY (`conversation_id`) REFERENCES `conversation`(`id`) ON DELETE CASCADE)",
	"CREATE TABLE IF NOT EXISTS `item` (" +
		"`id` VARCHAR(24) NOT NULL PRIMARY KEY," +
		"`name` VARCHAR(256) NOT NULL," +
		"`category` VARCHAR(256) NOT NULL," +
		"`description` TEXT NOT NULL," +
		"`price` DOUBLE NOT NULL," +
		"`status` VARCHAR(32) NOT NULL DEFAULT 'ACTIVE'," +
		"`created_ts` BIGINT NOT NULL," +
		"`updated_ts` BIGINT NOT NULL)",
	"CREATE TABLE IF NOT EXISTS `cart` (" +
		"`id` INT NOT NULL AUTO_INCREMENT PRIMARY KEY," +
		"`user_id` VARCHAR(256) NOT NULL UNIQUE," +
		"`version` BIGINT NOT NULL DEFAULT 1," +
		"`updated_ts` BIGINT NOT NULL)",
	"CREATE TABLE IF NOT EXISTS `cart_item` (" +
		"`cart_id` INT NOT NULL," +
		"`position` INT NOT NULL," +
		"`item_id` VARCHAR(24) NOT NULL," +
		"`name` VARCHAR(256) NOT NULL," +
		"`unit_price` DOUBLE NOT NULL," +
		"`quantity` INT NOT NULL," +
		"`subtotal` DOUBLE NOT NULL," +
		"`added_ts` BIGINT NOT NULL," +
		"PRIMARY KEY (`cart_id`, `item_id`)," +
		"CONSTRAINT `fk_cart_item_cart` FOREIGN KEY (`cart_id`) REFERENCES `cart`(`id`) ON DELETE CASCADE)",
	"CREATE TABLE IF NOT EXISTS `purchase_request` (" +
		"`id` INT NOT NULL AUTO_INCREMENT PRIMARY KEY," +
		"`uid` VARCHAR(64) NOT NULL UNIQUE," +
		"`request_number` VARCHAR(32) NOT NULL UNIQUE," +
		"`user_id` VARCHAR(256) NOT NULL," +
		"`status` VARCHAR(32) NOT NULL," +
		"`total_cost` DOUBLE NOT NULL," +
		"`shipping_address` TEXT NOT NULL," +
		"`payment_method` VARCHAR(256) NOT NULL DEFAULT ''," +
		"`created_ts` BIGINT NOT NULL," +
		"INDEX `idx_purchase_request_user` (`user_id`))",
	"CREATE TABLE IF NOT EXISTS `purchase_request_item` (" +
		"`purchase_request_id` INT NOT NULL," +
		"`position` INT NOT NULL," +
		"`item_id` VARCHAR(24) NOT NULL," +
		"`name` VARCHAR(256) NOT NULL," +
		"`unit_price` DOUBLE NOT NULL," +
		"`quantity` INT NOT NULL," +
		"`subtotal` DOUBLE NOT NULL," +
		"PRIMARY KEY (`purchase_request_id`, `position`)," +
		"CONSTRAINT `fk_purchase_request_item_request` FOREIGN KEY (`purchase_request_id`) REFERENCES `purchase_request`(`id`) ON DELETE CASCADE)",
	"CREATE TABLE IF NOT EXISTS `request_sequence` (" +
		"`year` INT NOT NULL PRIMARY KEY," +
		"`last_value` INT NOT NULL)",
}

func (d *DB) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "failed to migrate mysql schema")
		}
	}
	return nil
}
