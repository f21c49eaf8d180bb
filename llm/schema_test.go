package llm

import (
	"testing"

	"github.com/sashabaranov/go-openai/jsonschema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func TestStringListSchemas(t *testing.T) {
	s := StringList("question_list", "questions", "form questions")

	def := s.jsonSchema()
	assert.Equal(t, jsonschema.Object, def.Type)
	assert.Equal(t, []string{"questions"}, def.Required)
	assert.Equal(t, false, def.AdditionalProperties)
	items := def.Properties["questions"]
	assert.Equal(t, jsonschema.Array, items.Type)
	require.NotNil(t, items.Items)
	assert.Equal(t, jsonschema.String, items.Items.Type)

	gs := s.genaiSchema()
	assert.Equal(t, genai.TypeObject, gs.Type)
	require.Contains(t, gs.Properties, "questions")
	assert.Equal(t, genai.TypeArray, gs.Properties["questions"].Type)
	assert.Equal(t, genai.TypeString, gs.Properties["questions"].Items.Type)
}

func TestPickModel(t *testing.T) {
	assert.Equal(t, "override", pickModel(Params{Model: "override"}, "default"))
	assert.Equal(t, "default", pickModel(Params{}, "default"))
}
