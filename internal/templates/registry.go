package templates

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"restaurant-receptionist/internal/common/logger"
	"restaurant-receptionist/internal/models"
	"restaurant-receptionist/internal/nlu/features"
)

var (
	ErrTemplateNotFound         = errors.New("TEMPLATE_NOT_FOUND")
	ErrTemplateValidationFailed = errors.New("TEMPLATE_VALIDATION_FAILED")
	ErrUnresolvedPlaceholder    = errors.New("TEMPLATE_UNRESOLVED_PLACEHOLDER")
)

var placeholderRe = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_.]+)\s*\}\}`)

// Registry holds intent templates. When built from a file it re-reads the
// file once cacheTTL has passed; a failed re-read keeps the loaded set.
type Registry struct {
	path     string
	cacheTTL time.Duration
	logger   logger.Logger

	mu       sync.RWMutex
	byIntent map[models.Intent]Definition
	loadedAt time.Time
}

// Load reads and validates a YAML registry file.
func Load(path string, cacheTTL time.Duration, log logger.Logger) (*Registry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read registry: %w", err)
	}
	doc, err := Parse(raw)
	if err != nil {
		return nil, err
	}
	r := NewRegistry(doc, log)
	r.path = path
	r.cacheTTL = cacheTTL
	return r, nil
}

// NewRegistry builds an in-memory registry from a parsed document.
func NewRegistry(doc *Document, log logger.Logger) *Registry {
	r := &Registry{
		logger: log.WithFields(map[string]interface{}{"component": "templates"}),
	}
	r.set(doc)
	return r
}

// Parse decodes YAML and validates it against the registry schema.
func Parse(raw []byte) (*Document, error) {
	var generic map[string]interface{}
	if err := yaml.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTemplateValidationFailed, err)
	}
	if err := validate(generic); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTemplateValidationFailed, err)
	}

	var doc Document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTemplateValidationFailed, err)
	}
	for _, def := range doc.Templates {
		if models.ParseIntent(def.Intent) == models.IntentUnknown && def.Intent != string(models.IntentUnknown) {
			return nil, fmt.Errorf("%w: unknown intent %q", ErrTemplateValidationFailed, def.Intent)
		}
	}
	return &doc, nil
}

func validate(doc map[string]interface{}) error {
	schemaLoader := gojsonschema.NewStringLoader(documentSchema)
	documentLoader := gojsonschema.NewGoLoader(doc)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("validation error: %w", err)
	}
	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return fmt.Errorf("document validation failed: %v", errs)
	}
	return nil
}

func (r *Registry) set(doc *Document) {
	byIntent := make(map[models.Intent]Definition, len(doc.Templates))
	for _, def := range doc.Templates {
		byIntent[models.ParseIntent(def.Intent)] = def
	}
	r.mu.Lock()
	r.byIntent = byIntent
	r.loadedAt = time.Now()
	r.mu.Unlock()
}

func (r *Registry) lookup(intent models.Intent) (Definition, bool) {
	r.refreshIfStale()
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.byIntent[intent]
	return def, ok
}

func (r *Registry) refreshIfStale() {
	if r.path == "" || r.cacheTTL <= 0 {
		return
	}
	r.mu.RLock()
	fresh := time.Since(r.loadedAt) < r.cacheTTL
	r.mu.RUnlock()
	if fresh {
		return
	}

	raw, err := os.ReadFile(r.path)
	if err == nil {
		var doc *Document
		if doc, err = Parse(raw); err == nil {
			r.set(doc)
			return
		}
	}
	r.logger.Warn("template registry reload failed, keeping loaded templates", map[string]interface{}{
		"path":  r.path,
		"error": err.Error(),
	})
	r.mu.Lock()
	r.loadedAt = time.Now()
	r.mu.Unlock()
}

// Has reports whether intent has a template.
func (r *Registry) Has(intent models.Intent) bool {
	_, ok := r.lookup(intent)
	return ok
}

// Render fills the template of intent, picking a keyword variant matched
// against utterance. Every placeholder must resolve in data, otherwise the
// render misses with ErrUnresolvedPlaceholder.
func (r *Registry) Render(intent models.Intent, utterance string, data map[string]interface{}) (Rendered, error) {
	def, ok := r.lookup(intent)
	if !ok {
		return Rendered{}, fmt.Errorf("%w: %s", ErrTemplateNotFound, intent)
	}

	text := def.Text
	source := "template." + string(intent)
	if v, ok := matchVariant(def.Variants, utterance); ok {
		text = v.Text
		source += "." + v.Name
	}

	out, err := Substitute(text, data)
	if err != nil {
		return Rendered{}, err
	}
	return Rendered{Text: out, Source: source}, nil
}

func matchVariant(variants []Variant, utterance string) (Variant, bool) {
	padded := " " + features.Normalize(utterance) + " "
	for _, v := range variants {
		for _, kw := range v.Keywords {
			kw = features.Normalize(kw)
			if kw != "" && strings.Contains(padded, " "+kw+" ") {
				return v, true
			}
		}
	}
	return Variant{}, false
}

// Substitute replaces {{dotted.key}} placeholders with values from data.
func Substitute(text string, data map[string]interface{}) (string, error) {
	var missing []string
	out := placeholderRe.ReplaceAllStringFunc(text, func(m string) string {
		key := placeholderRe.FindStringSubmatch(m)[1]
		value, ok := render(lookupNestedValue(data, key))
		if !ok {
			missing = append(missing, key)
			return m
		}
		return value
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("%w: %s", ErrUnresolvedPlaceholder, strings.Join(missing, ", "))
	}
	return out, nil
}

func lookupNestedValue(data map[string]interface{}, key string) interface{} {
	parts := strings.Split(key, ".")
	current := interface{}(data)

	for _, part := range parts {
		currentMap, ok := current.(map[string]interface{})
		if !ok {
			return nil
		}
		val, exists := currentMap[part]
		if !exists {
			return nil
		}
		current = val
	}
	return current
}

func render(v interface{}) (string, bool) {
	switch val := v.(type) {
	case nil:
		return "", false
	case string:
		if strings.TrimSpace(val) == "" {
			return "", false
		}
		return val, true
	case []string:
		if len(val) == 0 {
			return "", false
		}
		return strings.Join(val, ", "), true
	case models.Cents:
		return val.String(), true
	case map[string]interface{}:
		return "", false
	default:
		return fmt.Sprint(val), true
	}
}
