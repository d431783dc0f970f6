package repository

import "fmt"

// Schema definitions for the Skua warehouse.
// Compatible with both SQLite and PostgreSQL; the only divergence is the
// auto-assigned surrogate id column, injected per driver below.

const schemaPreload = `
CREATE TABLE IF NOT EXISTS preload_transaction (
    %s,
    hash_id CHAR(32) NOT NULL,
    source_file VARCHAR(100) NOT NULL,
    transaction_id INTEGER NOT NULL,
    user_id INTEGER NOT NULL,
    transaction_time TIMESTAMP NOT NULL,
    item_code INTEGER NOT NULL,
    item_description VARCHAR(255),
    item_quantity INTEGER NOT NULL,
    cost_per_item DECIMAL NOT NULL,
    country VARCHAR(100),
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_preload_hash ON preload_transaction(hash_id, created_at);
CREATE INDEX IF NOT EXISTS idx_preload_source_file ON preload_transaction(source_file);
`

const schemaDimDate = `
CREATE TABLE IF NOT EXISTS dim_date (
    id INTEGER PRIMARY KEY,
    date DATE NOT NULL,
    year INTEGER NOT NULL,
    quarter CHAR(2) NOT NULL,
    month INTEGER NOT NULL,
    day INTEGER NOT NULL
);
`

const schemaDimItem = `
CREATE TABLE IF NOT EXISTS dim_item (
    id INTEGER PRIMARY KEY,
    description VARCHAR(255) NOT NULL
);
`

// dim_location carries a real UNIQUE constraint on country_name: the
// conflict-ignore insert depends on it, an application-level existence
// check alone would race under concurrent runs.
const schemaDimLocation = `
CREATE TABLE IF NOT EXISTS dim_location (
    %s,
    country_code CHAR(3) NOT NULL,
    country_name VARCHAR(100) NOT NULL UNIQUE,
    continent VARCHAR(20) NOT NULL
);
`

const schemaFact = `
CREATE TABLE IF NOT EXISTS fact_transaction (
    hash_id CHAR(32) NOT NULL,
    transaction_id INTEGER NOT NULL,
    user_id INTEGER NOT NULL,
    date_id INTEGER NOT NULL,
    transaction_time TIMESTAMP NOT NULL,
    item_id INTEGER NOT NULL,
    item_quantity INTEGER NOT NULL,
    cost_per_item DECIMAL NOT NULL,
    total_cost DECIMAL NOT NULL,
    location_id INTEGER NOT NULL,
    created_at TIMESTAMP NOT NULL,
    PRIMARY KEY (hash_id),
    CONSTRAINT fk_date
        FOREIGN KEY (date_id)
            REFERENCES dim_date(id),
    CONSTRAINT fk_item
        FOREIGN KEY (item_id)
            REFERENCES dim_item(id),
    CONSTRAINT fk_location
        FOREIGN KEY (location_id)
            REFERENCES dim_location(id)
);

CREATE INDEX IF NOT EXISTS idx_fact_created_at ON fact_transaction(created_at);
`

// AllSchemas returns the DDL statements in dependency order for a driver.
func AllSchemas(driver string) []string {
	identity := "id INTEGER PRIMARY KEY AUTOINCREMENT"
	if driver == "postgres" {
		identity = "id INTEGER GENERATED ALWAYS AS IDENTITY PRIMARY KEY"
	}

	return []string{
		fmt.Sprintf(schemaPreload, identity),
		schemaDimDate,
		schemaDimItem,
		fmt.Sprintf(schemaDimLocation, identity),
		schemaFact,
	}
}
