package llm

import (
	"github.com/sashabaranov/go-openai/jsonschema"
	"google.golang.org/genai"
)

const (
	TypeObject = "object"
	TypeArray  = "array"
	TypeString = "string"
)

// Schema is a provider-neutral subset of JSON Schema, enough to describe the
// structured responses the pipeline asks for. Objects are always closed.
type Schema struct {
	Name        string
	Type        string
	Description string
	Properties  map[string]*Schema
	Required    []string
	Items       *Schema
}

// StringList describes {"<field>": ["...", ...]}.
func StringList(name, field, description string) Schema {
	return Schema{
		Name: name,
		Type: TypeObject,
		Properties: map[string]*Schema{
			field: {
				Type:        TypeArray,
				Description: description,
				Items:       &Schema{Type: TypeString},
			},
		},
		Required: []string{field},
	}
}

func (s Schema) jsonSchema() jsonschema.Definition {
	def := jsonschema.Definition{
		Description: s.Description,
	}
	switch s.Type {
	case TypeObject:
		def.Type = jsonschema.Object
		def.Properties = make(map[string]jsonschema.Definition, len(s.Properties))
		for name, prop := range s.Properties {
			def.Properties[name] = prop.jsonSchema()
		}
		def.Required = append([]string(nil), s.Required...)
		def.AdditionalProperties = false
	case TypeArray:
		def.Type = jsonschema.Array
		if s.Items != nil {
			items := s.Items.jsonSchema()
			def.Items = &items
		}
	default:
		def.Type = jsonschema.String
	}
	return def
}

func (s Schema) genaiSchema() *genai.Schema {
	out := &genai.Schema{Description: s.Description}
	switch s.Type {
	case TypeObject:
		out.Type = genai.TypeObject
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for name, prop := range s.Properties {
			out.Properties[name] = prop.genaiSchema()
		}
		out.Required = append([]string(nil), s.Required...)
	case TypeArray:
		out.Type = genai.TypeArray
		if s.Items != nil {
			out.Items = s.Items.genaiSchema()
		}
	default:
		out.Type = genai.TypeString
	}
	return out
}
