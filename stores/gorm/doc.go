// Package gorm provides the GORM-backed AccountStore used in
// production. Uniqueness of email and provider subject IDs is enforced
// by partial unique indexes, and find-or-create is a single
// ON CONFLICT DO NOTHING insert so it cannot race.
//
// Run AutoMigrate once at startup:
//
//	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
//	if err != nil { ... }
//	if err := whispersgorm.AutoMigrate(db); err != nil { ... }
//	store := whispersgorm.NewAccountStore(db)
package gorm
