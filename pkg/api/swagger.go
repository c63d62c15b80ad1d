package api

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/health": {
            "get": {
                "security": [{"ApiKeyAuth": []}],
                "tags": ["health"],
                "summary": "Health check",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/tables": {
            "get": {
                "security": [{"ApiKeyAuth": []}],
                "tags": ["tables"],
                "summary": "List tables",
                "responses": {"200": {"description": "OK"}}
            },
            "post": {
                "security": [{"ApiKeyAuth": []}],
                "tags": ["tables"],
                "summary": "Create a table",
                "responses": {
                    "200": {"description": "OK"},
                    "400": {"description": "Bad Request"}
                }
            }
        },
        "/tables/{table}/rows": {
            "get": {
                "security": [{"ApiKeyAuth": []}],
                "tags": ["rows"],
                "summary": "List rows",
                "parameters": [
                    {"name": "table", "in": "path", "required": true, "type": "string"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "404": {"description": "Not Found"}
                }
            },
            "post": {
                "security": [{"ApiKeyAuth": []}],
                "tags": ["rows"],
                "summary": "Insert a row",
                "parameters": [
                    {"name": "table", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "400": {"description": "Bad Request"},
                    "404": {"description": "Not Found"}
                }
            }
        },
        "/tables/{table}/rows/{id}": {
            "delete": {
                "security": [{"ApiKeyAuth": []}],
                "tags": ["rows"],
                "summary": "Delete a row",
                "parameters": [
                    {"name": "table", "in": "path", "required": true, "type": "string"},
                    {"name": "id", "in": "path", "required": true, "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "404": {"description": "Not Found"}
                }
            }
        },
        "/tables/{table}/query": {
            "post": {
                "security": [{"ApiKeyAuth": []}],
                "tags": ["query"],
                "summary": "Query a table",
                "parameters": [
                    {"name": "table", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "400": {"description": "Bad Request"},
                    "404": {"description": "Not Found"}
                }
            }
        },
        "/tables/{table}/aggregate": {
            "post": {
                "security": [{"ApiKeyAuth": []}],
                "tags": ["query"],
                "summary": "Aggregate over a table",
                "parameters": [
                    {"name": "table", "in": "path", "required": true, "type": "string"},
                    {"name": "op", "in": "query", "required": true, "type": "string"},
                    {"name": "column", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "400": {"description": "Bad Request"},
                    "404": {"description": "Not Found"}
                }
            }
        },
        "/stats": {
            "get": {
                "security": [{"ApiKeyAuth": []}],
                "tags": ["diagnostics"],
                "summary": "Get database statistics",
                "responses": {"200": {"description": "OK"}}
            }
        }
    },
    "securityDefinitions": {
        "ApiKeyAuth": {
            "type": "apiKey",
            "name": "X-API-Key",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0.0",
	Host:             "localhost:9200",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "VerdandiDB REST API",
	Description:      "This is the REST API for VerdandiDB, an embeddable table store with live queries.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
