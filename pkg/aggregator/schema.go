package aggregator

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed quote_event.schema.json
var quoteSchemaBytes []byte

var quoteSchema *gojsonschema.Schema

func init() {
	var err error
	quoteSchema, err = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(quoteSchemaBytes))
	if err != nil {
		panic(fmt.Sprintf("failed to load quote event schema: %v", err))
	}
}

// validateQuoteEvent checks a quote payload against the embedded schema
func validateQuoteEvent(data []byte) error {
	result, err := quoteSchema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}

	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			msgs = append(msgs, desc.String())
		}
		return fmt.Errorf("schema validation failed: %s", strings.Join(msgs, "; "))
	}

	return nil
}
