package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// Record holds the schema definition for a saved replay record.
type Record struct{ ent.Schema }

// Fields of the Record.
func (Record) Fields() []ent.Field {
	return []ent.Field{
		field.String("corpus").NotEmpty().MaxLen(255),
		// Monotonic sequence per corpus, starting at 1.
		field.Int64("seq").NonNegative(),
		field.Text("circuit_str").NotEmpty(),
		field.Int64("n_shots").Positive(),
		// Histogram as JSON text; identical on Postgres and SQLite.
		field.Text("counts"),
		field.Time("created_at").Default(time.Now).Immutable().SchemaType(map[string]string{
			dialect.Postgres: "TIMESTAMPTZ",
			dialect.SQLite:   "DATETIME",
		}),
	}
}

// Indexes of the Record.
func (Record) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("corpus", "seq").Unique(),
	}
}
