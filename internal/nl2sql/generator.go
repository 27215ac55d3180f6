package nl2sql

import (
	"context"
	"fmt"
	"strings"

	"github.com/tickerql/tickerql/internal/stock"
)

// Generator turns a free-text question into SQL against the stock table.
type Generator interface {
	GenerateSQL(ctx context.Context, question string) (string, error)
}

// DummySQL is what DummyGenerator answers with for every question: the
// oldest record's date and close.
const DummySQL = `
            SELECT date, close
            FROM core_teslastockdata
            ORDER BY date ASC
            LIMIT 1
        `

type DummyGenerator struct{}

func (DummyGenerator) GenerateSQL(_ context.Context, _ string) (string, error) {
	return DummySQL, nil
}

// BuildPrompt renders the single-turn message sent to the model.
func BuildPrompt(schema, question string) string {
	return fmt.Sprintf(`Given the following SQL table,
            your job is to write queries given a user's request.

            %s

            Write a SQL query that returns - %s
            response only with the SQL query with no other text.
            `, schema, question)
}

func defaultSchema(schema string) string {
	if strings.TrimSpace(schema) == "" {
		return stock.TableSchema
	}
	return schema
}

// ExtractSQL removes a surrounding markdown code fence from model output.
// Everything else is passed through as returned.
func ExtractSQL(value string) (string, error) {
	sql := stripMarkdownSQL(value)
	if strings.TrimSpace(sql) == "" {
		return "", fmt.Errorf("model returned empty SQL")
	}
	return sql, nil
}

func stripMarkdownSQL(value string) string {
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```sql")
		trimmed = strings.TrimPrefix(trimmed, "```SQL")
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimSuffix(trimmed, "```")
		return strings.TrimSpace(trimmed)
	}
	return value
}
