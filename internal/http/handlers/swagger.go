package handlers

import (
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"gopkg.in/yaml.v3"
)

//go:embed openapi.yaml
var openAPIYAML []byte

const swaggerUIVersion = "5.17.14"

var swaggerUIHTML = fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8" />
    <meta name="viewport" content="width=device-width,initial-scale=1" />
    <title>SiteHub API</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@%[1]s/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@%[1]s/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: "/docs/openapi.json",
        dom_id: "#swagger-ui",
        deepLinking: true,
        presets: [SwaggerUIBundle.presets.apis],
        layout: "BaseLayout"
      });
    </script>
  </body>
</html>`, swaggerUIVersion)

type apiDocument struct {
	yamlETag string
	json     []byte
	jsonETag string
}

var loadAPIDocument = sync.OnceValues(func() (apiDocument, error) {
	var tree any
	if err := yaml.Unmarshal(openAPIYAML, &tree); err != nil {
		return apiDocument{}, fmt.Errorf("parse openapi.yaml: %w", err)
	}

	body, err := json.Marshal(stringKeys(tree))
	if err != nil {
		return apiDocument{}, fmt.Errorf("encode openapi json: %w", err)
	}

	return apiDocument{
		yamlETag: strongETag(openAPIYAML),
		json:     body,
		jsonETag: strongETag(body),
	}, nil
})

// stringKeys rewrites map[any]any nodes, which encoding/json rejects.
func stringKeys(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, child := range t {
			t[k] = stringKeys(child)
		}
		return t
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, child := range t {
			out[fmt.Sprint(k)] = stringKeys(child)
		}
		return out
	case []any:
		for i, child := range t {
			t[i] = stringKeys(child)
		}
		return t
	default:
		return v
	}
}

func strongETag(b []byte) string {
	sum := sha256.Sum256(b)
	return `"` + hex.EncodeToString(sum[:16]) + `"`
}

func serveDocument(ctx *gin.Context, contentType, etag string, body []byte) {
	ctx.Header("ETag", etag)
	ctx.Header("Cache-Control", "public, max-age=300")
	if etagMatches(ctx.GetHeader("If-None-Match"), etag) {
		ctx.Status(http.StatusNotModified)
		return
	}
	ctx.Data(http.StatusOK, contentType, body)
}

// GET /docs
func SwaggerUI(ctx *gin.Context) {
	ctx.Data(http.StatusOK, "text/html; charset=utf-8", []byte(swaggerUIHTML))
}

// GET /docs/openapi.yaml
func OpenAPISpec(ctx *gin.Context) {
	doc, err := loadAPIDocument()
	if err != nil {
		RespondInternal(ctx, "API document unavailable", err)
		return
	}
	serveDocument(ctx, "application/yaml", doc.yamlETag, openAPIYAML)
}

// GET /docs/openapi.json
func OpenAPIJSON(ctx *gin.Context) {
	doc, err := loadAPIDocument()
	if err != nil {
		RespondInternal(ctx, "API document unavailable", err)
		return
	}
	serveDocument(ctx, "application/json; charset=utf-8", doc.jsonETag, doc.json)
}
