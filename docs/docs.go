// Package docs registers the devmine OpenAPI document with swag so the
// gin-swagger UI can serve it. Regenerate with `swag init -g cmd/server/main.go`.
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
        "/health": {
            "get": {
                "description": "Reports process health and pings the database. Returns 503 when the database is unreachable.",
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": true}},
                    "503": {"description": "Service Unavailable", "schema": {"type": "object", "additionalProperties": true}}
                }
            }
        },
        "/scores": {
            "get": {
                "description": "Returns up to 100 scores with id in [since_id, since_id+100], ordered by id",
                "produces": ["application/json"],
                "tags": ["scores"],
                "summary": "List scores",
                "parameters": [
                    {"type": "integer", "default": 0, "description": "lowest id of the page", "name": "since_id", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/database.Score"}}},
                    "400": {"description": "Bad Request", "schema": {"type": "object", "additionalProperties": true}}
                }
            }
        },
        "/scores/{id}": {
            "get": {
                "description": "Returns the score with the given id, or an empty object when none exists",
                "produces": ["application/json"],
                "tags": ["scores"],
                "summary": "Get a score",
                "parameters": [
                    {"type": "integer", "description": "score id", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/database.Score"}},
                    "400": {"description": "Bad Request", "schema": {"type": "object", "additionalProperties": true}}
                }
            }
        },
        "/search": {
            "get": {
                "description": "Weighted sum of every developer's feature scores. Weights come from q; features left out use their default weight.",
                "produces": ["application/json"],
                "tags": ["ranking"],
                "summary": "Rank developers",
                "parameters": [
                    {"type": "string", "description": "feature:weight pairs, e.g. python:5,java:3", "name": "q", "in": "query"},
                    {"type": "string", "description": "rank to order by descending rank", "name": "sort", "in": "query"},
                    {"type": "integer", "description": "keep the first limit results", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/api.SearchResponse"}},
                    "400": {"description": "Bad Request", "schema": {"type": "object", "additionalProperties": true}}
                }
            },
            "post": {
                "description": "Same as GET /search with the weights given as a JSON object body.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["ranking"],
                "summary": "Rank developers",
                "parameters": [
                    {"description": "feature weights", "name": "weights", "in": "body", "schema": {"type": "object", "additionalProperties": {"type": "number"}}},
                    {"type": "string", "description": "rank to order by descending rank", "name": "sort", "in": "query"},
                    {"type": "integer", "description": "keep the first limit results", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/api.SearchResponse"}},
                    "400": {"description": "Bad Request", "schema": {"type": "object", "additionalProperties": true}}
                }
            }
        },
        "/features": {
            "get": {
                "description": "Feature catalog ordered by name with default weights",
                "produces": ["application/json"],
                "tags": ["ranking"],
                "summary": "List features",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/api.FeatureResponse"}}}
                }
            }
        },
        "/admin/ranking/invalidate": {
            "post": {
                "description": "The next ranking request rebuilds the matrix from the database. Cached responses are cleared too.",
                "produces": ["application/json"],
                "tags": ["admin"],
                "summary": "Drop the cached scores matrix",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": true}}
                }
            }
        },
        "/admin/ranking/stats": {
            "get": {
                "produces": ["application/json"],
                "tags": ["admin"],
                "summary": "Scores matrix state",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": true}}
                }
            }
        }
    },
    "definitions": {
        "database.Score": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "ulogin": {"type": "string"},
                "did": {"type": "integer"},
                "fname": {"type": "string"},
                "score": {"type": "number"}
            }
        },
        "ranking.RankedDeveloper": {
            "type": "object",
            "properties": {
                "ulogin": {"type": "string"},
                "rank": {"type": "number"},
                "did": {"type": "integer"}
            }
        },
        "api.SearchResponse": {
            "type": "object",
            "properties": {
                "results": {"type": "array", "items": {"$ref": "#/definitions/ranking.RankedDeveloper"}},
                "count": {"type": "integer"},
                "elapsed_time": {"type": "number"}
            }
        },
        "api.FeatureResponse": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "default_weight": {"type": "number"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "devmine API",
	Description:      "Developer scores and weighted feature ranking.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
