package equipment

import (
	"strings"
	"testing"

	"gorm.io/gorm"
)

// stripFunctionDefaults clears function column defaults (e.g. gen_random_uuid())
// from the parsed schema so AutoMigrate can create the tables on SQLite, which
// cannot parse them. The gorm tags on the models are left untouched; tests
// assign IDs client-side so the defaults are never exercised here.
func stripFunctionDefaults(t *testing.T, db *gorm.DB, dst ...any) {
	t.Helper()
	for _, model := range dst {
		stmt := &gorm.Statement{DB: db}
		if err := stmt.Parse(model); err != nil {
			t.Fatalf("parse schema for %T: %v", model, err)
		}
		for _, field := range stmt.Schema.Fields {
			if strings.HasSuffix(field.DefaultValue, ")") {
				field.DefaultValue = ""
				field.HasDefaultValue = false
			}
		}
	}
}
