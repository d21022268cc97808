package facts

import (
	"encoding/json"
	"fmt"
	"strings"

	apperrors "restaurant-receptionist/internal/common/errors"

	"github.com/xeipuuv/gojsonschema"
)

// BusinessData is the business-data document owned by the restaurant's
// data management tooling.
type BusinessData struct {
	BusinessName     string            `json:"business_name"`
	Description      string            `json:"description,omitempty"`
	HoursSummary     string            `json:"hours_summary,omitempty"`
	Hours            map[string]string `json:"hours,omitempty"`
	Address          Address           `json:"address"`
	Services         map[string]bool   `json:"services,omitempty"`
	Dietary          map[string]string `json:"dietary,omitempty"`
	LocationInfo     map[string]string `json:"location_info,omitempty"`
	FAQ              []FAQ             `json:"faq,omitempty"`
	MenuSections     []MenuSection     `json:"menu_sections"`
	Policies         map[string]string `json:"policies,omitempty"`
	ReservationRules ReservationRules  `json:"reservation_rules"`
	PopularItems     []string          `json:"popular_items,omitempty"`
	SpecialNotes     []string          `json:"special_notes,omitempty"`
	Facts            map[string]string `json:"facts,omitempty"`
}

type Address struct {
	Street  string `json:"street,omitempty"`
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
	Zip     string `json:"zip,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Website string `json:"website,omitempty"`
}

// String renders "123 Main St, Springfield, IL 62701".
func (a Address) String() string {
	var parts []string
	if a.Street != "" {
		parts = append(parts, a.Street)
	}
	if a.City != "" {
		parts = append(parts, a.City)
	}
	tail := strings.TrimSpace(a.State + " " + a.Zip)
	if tail != "" {
		parts = append(parts, tail)
	}
	return strings.Join(parts, ", ")
}

type FAQ struct {
	Question string   `json:"question"`
	Answer   string   `json:"answer"`
	Tags     []string `json:"tags,omitempty"`
}

type MenuSection struct {
	Name  string     `json:"name"`
	Items []MenuItem `json:"items"`
}

type MenuItem struct {
	Name        string   `json:"name"`
	Price       float64  `json:"price"`
	Description string   `json:"description,omitempty"`
	Synonyms    []string `json:"synonyms,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

type ReservationRules struct {
	MinPartySize        int `json:"min_party_size,omitempty"`
	MaxPartySize        int `json:"max_party_size,omitempty"`
	LargePartyThreshold int `json:"large_party_threshold,omitempty"`
	AdvanceBookingDays  int `json:"advance_booking_days,omitempty"`
}

const businessDataSchema = `{
  "type": "object",
  "required": ["business_name", "menu_sections"],
  "properties": {
    "business_name": {"type": "string", "minLength": 1},
    "hours_summary": {"type": "string"},
    "hours": {"type": "object", "additionalProperties": {"type": "string"}},
    "menu_sections": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name", "items"],
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "items": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["name", "price"],
              "properties": {
                "name": {"type": "string", "minLength": 1},
                "price": {"type": "number", "minimum": 0},
                "synonyms": {"type": "array", "items": {"type": "string"}}
              }
            }
          }
        }
      }
    },
    "faq": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["question", "answer"]
      }
    },
    "reservation_rules": {
      "type": "object",
      "properties": {
        "min_party_size": {"type": "integer", "minimum": 0},
        "max_party_size": {"type": "integer", "minimum": 0}
      }
    }
  }
}`

// ParseBusinessData validates raw against the business-data schema and
// decodes it.
func ParseBusinessData(raw []byte) (*BusinessData, error) {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(businessDataSchema),
		gojsonschema.NewBytesLoader(raw),
	)
	if err != nil {
		return nil, apperrors.NewBusinessDataInvalidError(err.Error())
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, apperrors.NewBusinessDataInvalidError(strings.Join(msgs, "; "))
	}

	var data BusinessData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("decode business data: %w", err)
	}
	return &data, nil
}
