// Package docs registers the OpenAPI description served under /swagger.
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
        "/auth/login": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Login",
                "parameters": [
                    {"description": "Login credentials", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.loginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.authResponse"}},
                    "202": {"description": "Authorization still running", "schema": {"$ref": "#/definitions/handler.authResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.errorResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handler.errorResponse"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/handler.deniedResponse"}},
                    "429": {"description": "Too Many Requests", "schema": {"$ref": "#/definitions/handler.errorResponse"}}
                }
            }
        },
        "/auth/signup": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Sign up",
                "parameters": [
                    {"description": "Account details", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.signupRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.authResponse"}},
                    "202": {"description": "Authorization still running", "schema": {"$ref": "#/definitions/handler.authResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.errorResponse"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/handler.deniedResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/handler.errorResponse"}},
                    "429": {"description": "Too Many Requests", "schema": {"$ref": "#/definitions/handler.errorResponse"}}
                }
            }
        },
        "/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Liveness probe",
                "responses": {"200": {"description": "OK", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}}
            }
        },
        "/health/ready": {
            "get": {
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Readiness probe",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.readinessResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/handler.readinessResponse"}}
                }
            }
        },
        "/v1/auth/logout": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["auth"],
                "summary": "Logout",
                "responses": {
                    "204": {"description": "No Content"},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handler.errorResponse"}}
                }
            }
        },
        "/v1/session": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Current session",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.sessionResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handler.errorResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        },
        "/v1/members": {
            "get": {
                "security": [{"BearerAuth": []}],
                "description": "Members ordered by name. q keeps members whose name, email or phone contains it, ignoring case.",
                "produces": ["application/json"],
                "tags": ["members"],
                "summary": "List members",
                "parameters": [{"type": "string", "description": "Search term", "name": "q", "in": "query"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.listMembersResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/handler.errorResponse"}}
                }
            },
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["members"],
                "summary": "Add a member",
                "parameters": [
                    {"description": "Member", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.createMemberRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/handler.memberResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.errorResponse"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/handler.errorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/handler.errorResponse"}}
                }
            }
        },
        "/v1/members/export": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"],
                "tags": ["members"],
                "summary": "Export members as a spreadsheet",
                "parameters": [{"type": "string", "description": "Search term, same as the list", "name": "q", "in": "query"}],
                "responses": {"200": {"description": "OK", "schema": {"type": "file"}}}
            }
        },
        "/v1/members/import": {
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "First sheet, header row Nom, Email, Téléphone, Adresse, Statut, Rôle, Doc, Memo. Existing emails are skipped. A write error stops the import; rows already written are kept.",
                "consumes": ["multipart/form-data"],
                "produces": ["application/json"],
                "tags": ["members"],
                "summary": "Import members from a spreadsheet",
                "parameters": [{"type": "file", "description": "xlsx file", "name": "file", "in": "formData", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.importResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.errorResponse"}},
                    "413": {"description": "Request Entity Too Large", "schema": {"$ref": "#/definitions/handler.errorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/handler.importResponse"}}
                }
            }
        },
        "/v1/members/stream": {
            "get": {
                "security": [{"BearerAuth": []}],
                "description": "Server-Sent Events. A \"members\" event carrying the ordered, filtered list is sent on connect and after every change.",
                "produces": ["text/event-stream"],
                "tags": ["members"],
                "summary": "Live member list",
                "parameters": [{"type": "string", "description": "Search term", "name": "q", "in": "query"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.listMembersResponse"}}}
            }
        },
        "/v1/members/{id}": {
            "delete": {
                "security": [{"BearerAuth": []}],
                "tags": ["members"],
                "summary": "Delete a member",
                "parameters": [{"type": "string", "description": "Member id", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "204": {"description": "No Content"},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.errorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handler.errorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "handler.authResponse": {
            "type": "object",
            "properties": {
                "expires_at": {"type": "string"},
                "session": {"$ref": "#/definitions/handler.sessionResponse"},
                "status": {"type": "string"},
                "token": {"type": "string"}
            }
        },
        "handler.createMemberRequest": {
            "type": "object",
            "required": ["email", "name"],
            "properties": {
                "address": {"type": "string", "maxLength": 500},
                "doc": {"type": "string", "enum": ["M", "C"]},
                "email": {"type": "string"},
                "memo": {"type": "string", "maxLength": 2000},
                "name": {"type": "string", "maxLength": 200},
                "phone": {"type": "string", "maxLength": 50},
                "role": {"type": "string", "enum": ["admin", "membre"]},
                "status": {"type": "string", "enum": ["Actif", "Inactif"]}
            }
        },
        "handler.deniedResponse": {
            "type": "object",
            "properties": {"error": {"type": "string"}, "notice": {"type": "string"}}
        },
        "handler.dependencyStatus": {
            "type": "object",
            "properties": {"error": {"type": "string"}, "status": {"type": "string"}}
        },
        "handler.errorResponse": {
            "type": "object",
            "properties": {"error": {"type": "string"}}
        },
        "handler.importResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "imported": {"type": "integer"},
                "skipped": {"type": "array", "items": {"type": "string"}}
            }
        },
        "handler.listMembersResponse": {
            "type": "object",
            "properties": {
                "items": {"type": "array", "items": {"$ref": "#/definitions/handler.memberResponse"}},
                "total": {"type": "integer"}
            }
        },
        "handler.loginRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {"email": {"type": "string"}, "password": {"type": "string"}}
        },
        "handler.memberResponse": {
            "type": "object",
            "properties": {
                "address": {"type": "string"},
                "doc": {"type": "string"},
                "email": {"type": "string"},
                "id": {"type": "string"},
                "memo": {"type": "string"},
                "name": {"type": "string"},
                "phone": {"type": "string"},
                "role": {"type": "string"},
                "status": {"type": "string"}
            }
        },
        "handler.readinessResponse": {
            "type": "object",
            "properties": {
                "dependencies": {"type": "object", "additionalProperties": {"$ref": "#/definitions/handler.dependencyStatus"}},
                "status": {"type": "string"}
            }
        },
        "handler.sessionResponse": {
            "type": "object",
            "properties": {
                "display_name": {"type": "string"},
                "email": {"type": "string"},
                "member_id": {"type": "string"},
                "photo_url": {"type": "string"},
                "role": {"type": "string"}
            }
        },
        "handler.signupRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {
                "display_name": {"type": "string", "maxLength": 120},
                "email": {"type": "string"},
                "password": {"type": "string", "minLength": 6}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "ACIM members dashboard API",
	Description:      "Member directory restricted to association members.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
