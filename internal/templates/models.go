package templates

// Document is the on-disk template registry.
type Document struct {
	Version   string       `yaml:"version"`
	Templates []Definition `yaml:"templates"`
}

// Definition is the reply template of one intent. Variants are tried in
// order and the first whose keywords appear in the utterance wins.
type Definition struct {
	Intent   string    `yaml:"intent"`
	Text     string    `yaml:"text"`
	Variants []Variant `yaml:"variants,omitempty"`
}

type Variant struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
	Text     string   `yaml:"text"`
}

// Rendered is a filled template and its source tag.
type Rendered struct {
	Text   string
	Source string
}

const documentSchema = `{
  "type": "object",
  "required": ["templates"],
  "properties": {
    "version": {"type": "string"},
    "templates": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["intent", "text"],
        "properties": {
          "intent": {"type": "string", "minLength": 1},
          "text": {"type": "string", "minLength": 1},
          "variants": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["name", "keywords", "text"],
              "properties": {
                "name": {"type": "string", "pattern": "^[a-z0-9_]+$"},
                "keywords": {"type": "array", "minItems": 1, "items": {"type": "string"}},
                "text": {"type": "string", "minLength": 1}
              }
            }
          }
        }
      }
    }
  }
}`
