package fs

import (
	"bytes"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/gowebpki/jcs"
	"gopkg.in/yaml.v3"

	"github.com/aretw0/tally/pkg/core"
)

// Serializer defines how to read and write the document in a specific format.
type Serializer interface {
	// Parse reads from r and returns the generic (untrusted) payload. The
	// caller normalizes it.
	Parse(r io.Reader) (any, error)
	// Serialize converts the Document to bytes.
	Serialize(doc core.Document) ([]byte, error)
}

// ErrUnsupported is returned by serializers that only work in one direction.
var ErrUnsupported = errors.New("operation not supported by serializer")

// DefaultSerializers returns the standard set of serializers keyed by file
// extension.
func DefaultSerializers() map[string]Serializer {
	return map[string]Serializer{
		".json": NewJSONSerializer(),
		".yaml": NewYAMLSerializer(),
		".yml":  NewYAMLSerializer(),
		".csv":  NewCSVSerializer(),
	}
}

// --- JSON Serializer ---

// JSONSerializer is the native format of the data file.
type JSONSerializer struct{}

// NewJSONSerializer creates a new JSON serializer.
func NewJSONSerializer() *JSONSerializer {
	return &JSONSerializer{}
}

func (s *JSONSerializer) Parse(r io.Reader) (any, error) {
	var payload any
	decoder := json.NewDecoder(r)
	if err := decoder.Decode(&payload); err != nil {
		return nil, fmt.Errorf("invalid json: %w", err)
	}
	if decoder.More() {
		return nil, fmt.Errorf("invalid json: trailing data after document")
	}
	return payload, nil
}

func (s *JSONSerializer) Serialize(doc core.Document) ([]byte, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// --- YAML Serializer ---

// YAMLSerializer handles human friendly exports and imports.
type YAMLSerializer struct{}

// NewYAMLSerializer creates a new YAML serializer.
func NewYAMLSerializer() *YAMLSerializer {
	return &YAMLSerializer{}
}

func (s *YAMLSerializer) Parse(r io.Reader) (any, error) {
	var payload any
	if err := yaml.NewDecoder(r).Decode(&payload); err != nil {
		return nil, fmt.Errorf("invalid yaml: %w", err)
	}
	return payload, nil
}

func (s *YAMLSerializer) Serialize(doc core.Document) ([]byte, error) {
	// Going through JSON keeps the field names of the data file.
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var generic map[string]any
	if err := json.Unmarshal(data, &generic); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(generic); err != nil {
		return nil, err
	}
	if err := encoder.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// --- CSV Serializer ---

// CSVSerializer exports the accounts store as a table. Other stores have no
// tabular form, so parsing is unsupported.
type CSVSerializer struct{}

// NewCSVSerializer creates a new CSV serializer.
func NewCSVSerializer() *CSVSerializer {
	return &CSVSerializer{}
}

var accountHeaders = []string{
	"id", "name", "category", "type", "monthlyPayment", "annualPayment",
	"hasReminder", "status", "priority", "ownerId",
}

func (s *CSVSerializer) Parse(r io.Reader) (any, error) {
	return nil, fmt.Errorf("csv import: %w", ErrUnsupported)
}

func (s *CSVSerializer) Serialize(doc core.Document) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(accountHeaders); err != nil {
		return nil, err
	}
	for _, acc := range doc.Accounts {
		owner := ""
		if acc.OwnerID != nil {
			owner = *acc.OwnerID
		}
		row := []string{
			strconv.Itoa(acc.ID),
			acc.Name,
			acc.Category,
			acc.Type,
			strconv.FormatFloat(acc.MonthlyPayment, 'f', -1, 64),
			strconv.FormatFloat(acc.AnnualPayment, 'f', -1, 64),
			acc.HasReminder,
			acc.Status,
			acc.Priority,
			owner,
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Digest canonicalizes JSON (RFC 8785) and returns its sha256 hex digest, so
// two files holding the same document compare equal regardless of
// formatting.
func Digest(data []byte) (string, error) {
	canonical, err := jcs.Transform(data)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}
