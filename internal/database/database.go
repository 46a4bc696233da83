package database

import (
	"fmt"

	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/bookwell/scheduling-core/internal/config"
	"github.com/bookwell/scheduling-core/internal/models"
)

// Connect opens the primary Postgres connection.
func Connect(cfg config.Database) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.URL), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// Migrate runs schema migration in two phases: gorm's AutoMigrate for
// column/table shape, then a hand-written pass for the exclusion
// constraints AutoMigrate cannot express — the storage-layer safety net
// the central hold/booking invariant depends on (spec §4.2 step 3).
func Migrate(db *gorm.DB) error {
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp"`).Error; err != nil {
		return fmt.Errorf("failed to create uuid extension: %w", err)
	}
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS "btree_gist"`).Error; err != nil {
		return fmt.Errorf("failed to create btree_gist extension: %w", err)
	}

	err := db.AutoMigrate(
		&models.MeetingType{},
		&models.AvailabilityRule{},
		&models.BlackoutDate{},
		&models.SlotHold{},
		&models.Booking{},
		&models.Document{},
		&models.ProcessedWebhook{},
	)
	if err != nil {
		return fmt.Errorf("failed to run auto-migrations: %w", err)
	}

	if err := createIndexes(db); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	if err := createExclusionConstraints(db); err != nil {
		return fmt.Errorf("failed to create exclusion constraints: %w", err)
	}

	return nil
}

func createIndexes(db *gorm.DB) error {
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_holds_slot_start ON slot_holds(slot_start)",
		"CREATE INDEX IF NOT EXISTS idx_bookings_slot_start ON bookings(slot_start)",
		"CREATE INDEX IF NOT EXISTS idx_documents_hold_id ON documents(hold_id)",
		"CREATE INDEX IF NOT EXISTS idx_documents_booking_id ON documents(booking_id)",
	}
	for _, stmt := range indexes {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return nil
}

// createExclusionConstraints installs the declarative range-exclusion
// constraints named in spec §4.2: no two active holds, and no two confirmed
// bookings, on the same meeting-type may have overlapping [slot_start,
// slot_end) ranges. This is the authoritative safety net; the serialization
// lock and re-query in internal/service are the fast path that avoids
// hitting it under normal traffic.
func createExclusionConstraints(db *gorm.DB) error {
	stmts := []string{
		`ALTER TABLE slot_holds ADD COLUMN IF NOT EXISTS slot_range tstzrange
			GENERATED ALWAYS AS (tstzrange(slot_start, slot_end, '[)')) STORED`,
		`DO $$ BEGIN
			ALTER TABLE slot_holds ADD CONSTRAINT excl_active_holds_overlap
				EXCLUDE USING gist (meeting_type_id WITH =, slot_range WITH &&)
				WHERE (status = 'active');
		EXCEPTION WHEN duplicate_object THEN NULL; END $$;`,
		`ALTER TABLE bookings ADD COLUMN IF NOT EXISTS slot_range tstzrange
			GENERATED ALWAYS AS (tstzrange(slot_start, slot_end, '[)')) STORED`,
		`DO $$ BEGIN
			ALTER TABLE bookings ADD CONSTRAINT excl_confirmed_bookings_overlap
				EXCLUDE USING gist (meeting_type_id WITH =, slot_range WITH &&)
				WHERE (status = 'confirmed');
		EXCEPTION WHEN duplicate_object THEN NULL; END $$;`,
	}
	for _, stmt := range stmts {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("failed to apply exclusion constraint: %w", err)
		}
	}
	return nil
}

// ConnectRedis connects to Redis. Returning (nil, nil) lets callers treat an
// empty URL as "no Redis configured" and fall back to an in-process cache,
// matching the teacher's optional-collaborator pattern in main.go.
func ConnectRedis(cfg config.Redis) (*redis.Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}
	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	return redis.NewClient(opt), nil
}
