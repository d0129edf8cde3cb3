// Package docs holds the OpenAPI description of the gateway served at /swagger.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "license": {
            "name": "MIT",
            "url": "http://opensource.org/licenses/MIT"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/v1/lookup": {
            "get": {
                "description": "Look up the geolocation of one IP address. Without ip the gateway's own public address is resolved.",
                "produces": ["application/json"],
                "tags": ["IP Lookup"],
                "summary": "Look up an IP address",
                "parameters": [
                    {
                        "type": "string",
                        "example": "8.8.8.8",
                        "description": "IP address (IPv4 or IPv6)",
                        "name": "ip",
                        "in": "query"
                    },
                    {
                        "type": "string",
                        "description": "Provider API key, overrides the configured key",
                        "name": "X-API-Key",
                        "in": "header"
                    }
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.GeolocationResult"}},
                    "400": {"description": "Invalid IP address or missing API key", "schema": {"$ref": "#/definitions/models.ErrorResponse"}},
                    "429": {"description": "Rate limit exceeded", "schema": {"$ref": "#/definitions/models.ErrorResponse"}},
                    "502": {"description": "Provider failure", "schema": {"$ref": "#/definitions/models.ErrorResponse"}},
                    "504": {"description": "Provider timeout", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        },
        "/v1/lookup/batch": {
            "get": {
                "description": "Look up several IP addresses. Failures are reported per entry.",
                "produces": ["application/json"],
                "tags": ["IP Lookup"],
                "summary": "Look up several IP addresses",
                "parameters": [
                    {
                        "type": "array",
                        "items": {"type": "string"},
                        "collectionFormat": "multi",
                        "description": "IP addresses, repeated or comma separated (at most 100)",
                        "name": "ip",
                        "in": "query",
                        "required": true
                    },
                    {
                        "type": "string",
                        "description": "Provider API key, overrides the configured key",
                        "name": "X-API-Key",
                        "in": "header"
                    }
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.BatchResponse"}},
                    "400": {"description": "Missing or too many IP addresses", "schema": {"$ref": "#/definitions/models.ErrorResponse"}},
                    "429": {"description": "Rate limit exceeded", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "handler.BatchItem": {
            "type": "object",
            "properties": {
                "error": {"$ref": "#/definitions/models.ErrorResponse"},
                "result": {"$ref": "#/definitions/models.GeolocationResult"},
                "target": {"type": "string", "example": "8.8.8.8"}
            }
        },
        "handler.BatchResponse": {
            "type": "object",
            "properties": {
                "results": {"type": "array", "items": {"$ref": "#/definitions/handler.BatchItem"}}
            }
        },
        "models.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string", "example": "invalid IP address format: 999.1.1.1"},
                "kind": {"type": "string", "example": "invalid_argument"},
                "status": {"type": "integer", "example": 403}
            }
        },
        "models.GeolocationResult": {
            "type": "object",
            "properties": {
                "city": {"type": "string", "example": "Mountain View"},
                "country_code": {"type": "string", "example": "US"},
                "country_name": {"type": "string", "example": "United States"},
                "ip": {"type": "string", "example": "8.8.8.8"},
                "isp": {"type": "string", "example": "Google LLC"},
                "latitude": {"type": "number", "example": 37.4},
                "longitude": {"type": "number", "example": -122.1},
                "region": {"type": "string", "example": "California"},
                "timezone": {"type": "string", "example": "America/Los_Angeles"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:3000",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "IP Geolocation Gateway API",
	Description:      "HTTP front for the ip-api.com geolocation client with caching and rate limiting",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
