package httptransport

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/swaggo/swag"
)

const scalarHTML = `<!DOCTYPE html>
<html lang="en">
	<head>
		<meta charset="utf-8" />
		<title>POAP OG API Reference</title>
		<meta name="viewport" content="width=device-width, initial-scale=1" />
	</head>
	<body>
		<script
			id="api-reference"
			data-url="/openapi.json"
			data-layout="modern"
			src="https://cdn.jsdelivr.net/npm/@scalar/api-reference"
		></script>
	</body>
</html>`

// openAPITemplate mirrors the route annotations on the handlers in this package.
const openAPITemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "POAP OG API",
        "description": "Open Graph preview cards for wallet addresses.",
        "version": "1.0"
    },
    "basePath": "/api",
    "paths": {
        "/poap/v/{address}": {
            "get": {
                "tags": ["Preview"],
                "summary": "Address preview card",
                "produces": ["image/png"],
                "parameters": [{"name": "address", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "1200x630 PNG"},
                    "302": {"description": "cached CDN copy"},
                    "400": {"description": "missing or repeated address", "schema": {"$ref": "#/definitions/APIResponse"}},
                    "500": {"description": "generation failed", "schema": {"$ref": "#/definitions/APIResponse"}}
                }
            },
            "post": {
                "tags": ["Preview"],
                "summary": "Address preview card from supplied badges",
                "consumes": ["application/json"],
                "produces": ["image/png"],
                "parameters": [
                    {"name": "address", "in": "path", "required": true, "type": "string"},
                    {"name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/PreviewPayload"}}
                ],
                "responses": {
                    "200": {"description": "1200x630 PNG"},
                    "302": {"description": "cached CDN copy"},
                    "400": {"description": "malformed body", "schema": {"$ref": "#/definitions/APIResponse"}},
                    "401": {"description": "wrong poapapikey", "schema": {"$ref": "#/definitions/APIResponse"}},
                    "413": {"description": "body too large", "schema": {"$ref": "#/definitions/APIResponse"}}
                }
            }
        },
        "/cron/refresh": {
            "post": {
                "tags": ["Refresh"],
                "summary": "Warm cards for recent collectors",
                "security": [{"CronSecret": []}],
                "responses": {
                    "200": {"description": "events queued"},
                    "401": {"description": "bad bearer token"},
                    "405": {"description": "not POST"},
                    "500": {"description": "mint lookup failed"}
                }
            }
        },
        "/metrics": {
            "get": {
                "tags": ["Observability"],
                "summary": "Prometheus metrics",
                "produces": ["text/plain"],
                "responses": {"200": {"description": "text exposition"}}
            }
        },
        "/health": {
            "get": {
                "tags": ["Observability"],
                "summary": "Process health",
                "responses": {"200": {"description": "uptime and resource usage", "schema": {"$ref": "#/definitions/APIResponse"}}}
            }
        }
    },
    "securityDefinitions": {
        "CronSecret": {"type": "apiKey", "in": "header", "name": "Authorization"}
    },
    "definitions": {
        "APIResponse": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "data": {"type": "object"},
                "message": {"type": "string"},
                "code": {"type": "integer"}
            }
        },
        "PreviewPayload": {
            "type": "object",
            "required": ["poaps", "poapapikey"],
            "properties": {
                "poaps": {"type": "array", "items": {"type": "object"}},
                "latestMoments": {"type": "array", "items": {"type": "object"}},
                "poapapikey": {"type": "string"}
            }
        }
    }
}`

type openAPIDoc struct{}

func (openAPIDoc) ReadDoc() string { return openAPITemplate }

func init() {
	swag.Register(swag.Name, openAPIDoc{})
}

// DocsHandler serves the OpenAPI document and a browsable reference page.
type DocsHandler struct{}

func NewDocsHandler() *DocsHandler {
	return &DocsHandler{}
}

func (h *DocsHandler) RegisterRoutes(router *Router) {
	router.Engine.GET("/openapi.json", h.OpenAPI)
	router.Engine.GET("/docs", h.Reference)
}

func (h *DocsHandler) OpenAPI(c *gin.Context) {
	doc, err := swag.ReadDoc()
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "failed to generate openapi spec", gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(doc))
}

func (h *DocsHandler) Reference(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(scalarHTML))
}
