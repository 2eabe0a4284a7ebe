// Package docs registers the OpenAPI document served at /openapi.json.
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
        "/analyze-skin": {
            "get": {
                "description": "Returns the provider, model and completion ceiling used for skin analysis.",
                "produces": ["application/json"],
                "tags": ["Analysis"],
                "summary": "Analysis service status",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "allOf": [
                                {"$ref": "#/definitions/httptransport.APIResponse"},
                                {
                                    "type": "object",
                                    "properties": {
                                        "data": {"$ref": "#/definitions/analysis.StatusData"}
                                    }
                                }
                            ]
                        }
                    }
                }
            },
            "post": {
                "description": "Uploads one photo and streams the model output as server-sent events.\nEach event is ` + "`" + `data: <json>` + "`" + ` where json is {\"content\"}, {\"analysis\",\"done\":true} or {\"error\"}.",
                "consumes": ["multipart/form-data"],
                "produces": ["text/event-stream"],
                "tags": ["Analysis"],
                "summary": "Analyze a skin photo",
                "parameters": [
                    {
                        "type": "file",
                        "description": "Face photo",
                        "name": "image",
                        "in": "formData",
                        "required": true
                    }
                ],
                "responses": {
                    "200": {
                        "description": "event stream",
                        "schema": {"type": "string"}
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {"$ref": "#/definitions/httptransport.ErrorResponse"}
                    },
                    "429": {
                        "description": "Too Many Requests",
                        "schema": {"$ref": "#/definitions/httptransport.RateLimitResponse"}
                    },
                    "500": {
                        "description": "Internal Server Error",
                        "schema": {"$ref": "#/definitions/httptransport.ErrorResponse"}
                    }
                }
            }
        }
    },
    "definitions": {
        "analysis.StatusData": {
            "type": "object",
            "properties": {
                "max_tokens": {"type": "integer"},
                "model": {"type": "string"},
                "provider": {"type": "string"}
            }
        },
        "httptransport.APIResponse": {
            "type": "object",
            "properties": {
                "code": {"type": "integer"},
                "data": {},
                "message": {"type": "string"},
                "success": {"type": "boolean"}
            }
        },
        "httptransport.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string"}
            }
        },
        "httptransport.RateLimitResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "retry_after": {"type": "integer"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api",
	Schemes:          []string{},
	Title:            "The Skin Lab API",
	Description:      "Streaming skin analysis for The Skin Lab.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
