// Package docs registers the OpenAPI document for the serve mode.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/report": {
            "get": {
                "produces": ["application/json"],
                "tags": ["report"],
                "summary": "Feature report over the current cluster snapshot",
                "parameters": [
                    {"type": "string", "name": "expr", "in": "query", "description": "boolean feature expression, empty selects all nodes"},
                    {"type": "boolean", "name": "gres", "in": "query", "description": "match the expression against GRES type names instead of features"},
                    {"type": "string", "enum": ["partition", "user"], "name": "summarize", "in": "query", "description": "add per-bucket running-job tallies"},
                    {"type": "boolean", "name": "verbose", "in": "query", "description": "keep sub-buckets that duplicate their parent"},
                    {"type": "boolean", "name": "nodes", "in": "query", "description": "include sorted node name lists per bucket"}
                ],
                "responses": {
                    "200": {"schema": {"$ref": "#/definitions/response.Response"}},
                    "400": {"schema": {"$ref": "#/definitions/response.Response"}},
                    "500": {"schema": {"$ref": "#/definitions/response.Response"}}
                }
            }
        },
        "/tokens": {
            "get": {
                "produces": ["application/json"],
                "tags": ["report"],
                "summary": "All feature and GRES type tokens usable in expressions",
                "responses": {
                    "200": {"schema": {"$ref": "#/definitions/response.Response"}},
                    "500": {"schema": {"$ref": "#/definitions/response.Response"}}
                }
            }
        }
    },
    "definitions": {
        "response.Response": {
            "type": "object",
            "properties": {
                "count": {"type": "integer"},
                "detail": {"type": "string"},
                "results": {}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "0.1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "fern",
	Description:      "Slurm node feature reporting",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
