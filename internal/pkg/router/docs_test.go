package router

import (
	"context"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/remnashop/backoffice/internal/pkg/gateway"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIDocsAreValid(t *testing.T) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromFile("../../../docs/openapi.yml")
	require.NoError(t, err)
	require.NoError(t, doc.Validate(context.Background()))

	webhook := doc.Paths.Find("/webhook/payments/{gateway}")
	require.NotNil(t, webhook)
	require.NotNil(t, webhook.Post)

	param := webhook.Post.Parameters.GetByInAndName(openapi3.ParameterInPath, "gateway")
	require.NotNil(t, param)
	var documented []string
	for _, v := range param.Schema.Value.Enum {
		documented = append(documented, v.(string))
	}
	assert.ElementsMatch(t, gateway.DefaultRegistry().Names(), documented)
	assert.NotNil(t, doc.Paths.Find("/health"))
}
