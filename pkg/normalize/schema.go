package normalize

import (
	_ "embed"
	"fmt"
	"sort"
	"sync"

	"github.com/kaptinlin/jsonschema"
)

//go:embed document.schema.json
var documentSchema []byte

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func loadSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.AssertFormat = true
		compiledSchema, schemaErr = compiler.Compile(documentSchema)
		if schemaErr != nil {
			schemaErr = fmt.Errorf("compile document schema: %w", schemaErr)
		}
	})
	return compiledSchema, schemaErr
}

// CheckSchema reports where data departs from the expected document shape.
// An empty result means the payload already matches. The findings are
// advisory: Document repairs whatever CheckSchema reports.
func CheckSchema(data []byte) ([]string, error) {
	schema, err := loadSchema()
	if err != nil {
		return nil, err
	}
	result := schema.ValidateJSON(data)
	if result.IsValid() {
		return nil, nil
	}
	issues := make([]string, 0, len(result.Errors))
	for key, evalErr := range result.Errors {
		issues = append(issues, fmt.Sprintf("%v: %v", key, evalErr))
	}
	sort.Strings(issues)
	if len(issues) == 0 {
		issues = append(issues, "document does not match schema")
	}
	return issues, nil
}
