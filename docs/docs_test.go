package docs_test

import (
	"encoding/json"
	"testing"

	"colabtrack/docs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swaggo/swag"
)

func TestSwaggerDocRenders(t *testing.T) {
	doc, err := swag.ReadDoc(docs.SwaggerInfo.InstanceName())
	require.NoError(t, err)

	var spec struct {
		Info  map[string]interface{} `json:"info"`
		Paths map[string]interface{} `json:"paths"`
	}
	require.NoError(t, json.Unmarshal([]byte(doc), &spec))
	assert.Equal(t, "Colabtrack API", spec.Info["title"])
	assert.Contains(t, spec.Paths, "/api/tasks")
	assert.Contains(t, spec.Paths, "/api/auth/refresh")
}
