package api

import (
	_ "embed"  // OpenAPI document
	"net/http" // HTTP status codes

	"github.com/gin-gonic/gin" // Gin web framework
)

// DocsPath is where the API reference is served
const DocsPath = "/api-docs"

//go:embed openapi.json
var openAPIDocument []byte

// Swagger UI page; it loads the document from DocsPath/openapi.json
const docsPage = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <title>Wallet API</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css">
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    window.ui = SwaggerUIBundle({ url: "` + DocsPath + `/openapi.json", dom_id: "#swagger-ui" });
  </script>
</body>
</html>`

// OpenAPIHandler serves the OpenAPI document
func OpenAPIHandler(c *gin.Context) {
	c.Data(http.StatusOK, "application/json; charset=utf-8", openAPIDocument)
}

// DocsHandler serves the interactive API reference
func DocsHandler(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(docsPage))
}
