package db

import (
	"fmt"

	"gorm.io/gorm"
)

var migrationStatements = []string{
	`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`,
	`CREATE EXTENSION IF NOT EXISTS "pgcrypto";`,
	`DO $$
	BEGIN
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'contract_status') THEN
			CREATE TYPE contract_status AS ENUM ('DRAFT', 'EXECUTED', 'CLOSED');
		END IF;
	END
	$$;`,
	`DO $$
	BEGIN
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'variation_status') THEN
			CREATE TYPE variation_status AS ENUM ('DRAFT', 'APPROVED', 'REJECTED');
		END IF;
	END
	$$;`,
	`CREATE TABLE IF NOT EXISTS contracts (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		contract_number VARCHAR(64) NOT NULL,
		project_id UUID NOT NULL,
		status contract_status NOT NULL DEFAULT 'DRAFT',
		original_amount NUMERIC(18,2) NOT NULL DEFAULT 0,
		revised_amount NUMERIC(18,2) NOT NULL DEFAULT 0,
		created_by_org_id UUID NOT NULL,
		created_by_user_id UUID NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_contracts_number ON contracts (contract_number);`,
	`CREATE INDEX IF NOT EXISTS idx_contracts_project_id ON contracts (project_id);`,
	`CREATE TABLE IF NOT EXISTS contract_lines (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		contract_id UUID NOT NULL REFERENCES contracts(id) ON DELETE CASCADE,
		line_number INTEGER NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		scheduled_value NUMERIC(18,2) NOT NULL CHECK (scheduled_value >= 0),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_contract_lines_number ON contract_lines (contract_id, line_number);`,
	`CREATE INDEX IF NOT EXISTS idx_contract_lines_contract_id ON contract_lines (contract_id);`,
	`CREATE TABLE IF NOT EXISTS contract_variations (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		contract_id UUID NOT NULL REFERENCES contracts(id) ON DELETE CASCADE,
		variation_number INTEGER NOT NULL,
		title TEXT NOT NULL,
		type VARCHAR(32) NOT NULL,
		amount NUMERIC(18,2) NOT NULL,
		status variation_status NOT NULL DEFAULT 'DRAFT',
		rejection_reason TEXT,
		approved_by_org_id UUID,
		approved_by_user_id UUID,
		approved_at TIMESTAMPTZ,
		created_by_org_id UUID NOT NULL,
		created_by_user_id UUID NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_contract_variations_number ON contract_variations (contract_id, variation_number);`,
	`CREATE INDEX IF NOT EXISTS idx_contract_variations_contract_id ON contract_variations (contract_id);`,
	`CREATE INDEX IF NOT EXISTS idx_contract_variations_status ON contract_variations (status);`,
}

func runMigrations(db *gorm.DB) error {
	for i, stmt := range migrationStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
