package instance

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/isdelr/ender-local/internal/models"
)

// OpsFile is the name of the operator roster inside an instance directory.
const OpsFile = "ops.json"

var validate = validator.New(validator.WithRequiredStructEnabled())

// opRecord mirrors one ops.json element with pointers so missing fields can
// be told apart from zero values.
type opRecord struct {
	UUID                *string `json:"uuid" validate:"required"`
	Name                *string `json:"name" validate:"required"`
	Level               *int    `json:"level" validate:"required,min=0,max=4"`
	BypassesPlayerLimit *bool   `json:"bypassesPlayerLimit" validate:"required"`
}

// LoadOps reads <dir>/ops.json. A missing file yields an empty roster.
func LoadOps(dir string) ([]models.OpEntry, error) {
	path := filepath.Join(dir, OpsFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []models.OpEntry{}, nil
		}
		return nil, readError(path, err)
	}
	return decodeOps(path, data)
}

func decodeOps(path string, data []byte) ([]models.OpEntry, error) {
	var records []opRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, decodeError(path, err)
	}
	if records == nil {
		// a literal "null" is not a roster
		return nil, decodeError(path, errors.New("expected a JSON array"))
	}

	ops := make([]models.OpEntry, 0, len(records))
	for i, rec := range records {
		if err := validate.Struct(rec); err != nil {
			return nil, decodeError(path, fmt.Errorf("entry %d: %w", i, err))
		}
		ops = append(ops, models.OpEntry{
			UUID:                *rec.UUID,
			Name:                *rec.Name,
			Level:               *rec.Level,
			BypassesPlayerLimit: *rec.BypassesPlayerLimit,
		})
	}
	return ops, nil
}
