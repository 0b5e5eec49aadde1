package db

import "fmt"

// SchemaSQL returns the memory schema for vectors of the given dimension.
// Records are insert-only: the id is derived from the user and the
// second the exchange happened, so a repeated write fails with
// "already exists" instead of overwriting.
func SchemaSQL(dimension int) string {
	return fmt.Sprintf(`
    DEFINE TABLE IF NOT EXISTS memory SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS user_id ON memory TYPE string;
    DEFINE FIELD IF NOT EXISTS content ON memory TYPE string;
    DEFINE FIELD IF NOT EXISTS embedding ON memory TYPE array<float>;
    DEFINE FIELD IF NOT EXISTS sentiment ON memory TYPE object;
    DEFINE FIELD IF NOT EXISTS sentiment.label ON memory TYPE string;
    DEFINE FIELD IF NOT EXISTS sentiment.score ON memory TYPE float;
    DEFINE FIELD IF NOT EXISTS emotion ON memory TYPE object;
    DEFINE FIELD IF NOT EXISTS emotion.label ON memory TYPE string;
    DEFINE FIELD IF NOT EXISTS emotion.score ON memory TYPE float;
    DEFINE FIELD IF NOT EXISTS ts ON memory TYPE int;
    DEFINE FIELD IF NOT EXISTS created ON memory TYPE datetime DEFAULT time::now() READONLY;

    DEFINE INDEX IF NOT EXISTS memory_user ON memory FIELDS user_id;
    DEFINE INDEX IF NOT EXISTS memory_embedding ON memory FIELDS embedding HNSW DIMENSION %d DIST COSINE TYPE F32;
`, dimension)
}
